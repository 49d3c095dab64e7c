// Package orchestrator executes one intent's ordered write steps against
// the chain. A step is submitted only after the previous step is
// confirmed on-chain; the whole run is guarded by an explicit state
// machine so two orchestrations can never overlap.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"defi-hub/pkg/chain"
	"defi-hub/pkg/contracts"
	"defi-hub/pkg/intent"
)

// State is the orchestrator's lifecycle state. It replaces an ambient
// pending boolean: Pending derives from it, and transitions happen only
// inside Submit.
type State int

const (
	Idle State = iota
	Running
	Succeeded
	Failed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome classifies how an orchestration terminated.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCancelled
	OutcomeFailed
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Result is the terminal record of one orchestration.
type Result struct {
	ID        uuid.UUID   `json:"id"`
	Kind      intent.Kind `json:"-"`
	Outcome   Outcome     `json:"-"`
	Err       error       `json:"-"`
	Steps     int         `json:"steps"`
	Completed time.Time   `json:"completed"`
}

// ErrBusy is returned when an orchestration is already running.
var ErrBusy = errors.New("an orchestration is already in progress")

// RefreshScheduler receives the completed intent kind so the affected
// read entries can be re-read after the settle delay.
type RefreshScheduler interface {
	ScheduleRefresh(kind intent.Kind)
}

// Orchestrator runs intents as strictly ordered step sequences.
type Orchestrator struct {
	writer    chain.Writer
	scheduler RefreshScheduler
	book      contracts.AddressBook

	mu      sync.Mutex
	state   State
	current uuid.UUID
	last    *Result
	subs    []func(State)

	// onSuccess lets the owning layer clear input state tied to the
	// completed intent so stale values are never resubmitted.
	onSuccess func(intent.Kind)
}

// New creates an orchestrator in the Idle state.
func New(writer chain.Writer, scheduler RefreshScheduler, book contracts.AddressBook) *Orchestrator {
	return &Orchestrator{
		writer:    writer,
		scheduler: scheduler,
		book:      book,
		state:     Idle,
	}
}

// OnTransition registers a callback invoked after every state change.
func (o *Orchestrator) OnTransition(fn func(State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, fn)
}

// OnSuccess registers the input-reset hook run after a successful
// orchestration, before the refresh is scheduled.
func (o *Orchestrator) OnSuccess(fn func(intent.Kind)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onSuccess = fn
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pending reports whether an orchestration has unconfirmed steps
// outstanding. While true, intent submission must stay disabled.
func (o *Orchestrator) Pending() bool {
	return o.State() == Running
}

// LastResult returns the terminal record of the most recent
// orchestration, if any.
func (o *Orchestrator) LastResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Submit runs the intent's full step sequence and blocks until the
// terminal outcome. It returns an error only for preconditions (another
// orchestration running, or an unsubmittable intent); step failures are
// reported through the Result.
func (o *Orchestrator) Submit(ctx context.Context, it intent.Intent) (*Result, error) {
	id, steps, err := o.begin(it)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, id, it.Kind(), steps), nil
}

// SubmitAsync reserves the orchestration and runs its steps in the
// background, returning the orchestration id immediately. State and
// LastResult expose progress and the terminal outcome.
func (o *Orchestrator) SubmitAsync(ctx context.Context, it intent.Intent) (uuid.UUID, error) {
	id, steps, err := o.begin(it)
	if err != nil {
		return uuid.Nil, err
	}
	go o.run(ctx, id, it.Kind(), steps)
	return id, nil
}

// begin validates the intent, expands it and atomically claims the
// Running state. There is no window in which two submissions can both
// observe the orchestrator as not running.
func (o *Orchestrator) begin(it intent.Intent) (uuid.UUID, []Step, error) {
	steps, err := ExpandSteps(it, o.book)
	if err != nil {
		return uuid.Nil, nil, err
	}

	o.mu.Lock()
	if o.state == Running {
		o.mu.Unlock()
		return uuid.Nil, nil, ErrBusy
	}
	id := uuid.New()
	o.state = Running
	o.current = id
	subs := append([]func(State){}, o.subs...)
	o.mu.Unlock()

	fmt.Printf("[Orchestrator] Started %s orchestration %s (%d steps)\n", it.Kind(), id, len(steps))
	notify(subs, Running)
	return id, steps, nil
}

// run executes the steps strictly in order. The first failure halts the
// chain: no further step is submitted and no refresh is scheduled.
func (o *Orchestrator) run(ctx context.Context, id uuid.UUID, kind intent.Kind, steps []Step) *Result {
	for i, step := range steps {
		fmt.Printf("[Orchestrator] Step %d/%d: %s on %s\n", i+1, len(steps), step.Method, step.Contract.Hex())

		if _, err := o.writer.Write(ctx, step.Contract, step.Method, step.Args...); err != nil {
			outcome := OutcomeFailed
			if errors.Is(err, context.Canceled) {
				outcome = OutcomeCancelled
			}
			fmt.Printf("[Orchestrator] Step %d/%d failed: %v\n", i+1, len(steps), err)
			return o.finish(&Result{
				ID:        id,
				Kind:      kind,
				Outcome:   outcome,
				Err:       fmt.Errorf("step %d (%s) failed: %w", i+1, step.Method, err),
				Steps:     i,
				Completed: time.Now(),
			})
		}
	}

	fmt.Printf("[Orchestrator] Orchestration %s confirmed\n", id)
	return o.finish(&Result{
		ID:        id,
		Kind:      kind,
		Outcome:   OutcomeSuccess,
		Steps:     len(steps),
		Completed: time.Now(),
	})
}

// finish runs the success side effects, records the terminal result and
// clears the pending state, strictly in that order: inputs are reset and
// the refresh handed off while the orchestration still reads as pending,
// so a caller observing Pending() false can never race them.
func (o *Orchestrator) finish(result *Result) *Result {
	o.mu.Lock()
	subs := append([]func(State){}, o.subs...)
	onSuccess := o.onSuccess
	o.mu.Unlock()

	if result.Outcome == OutcomeSuccess {
		if onSuccess != nil {
			onSuccess(result.Kind)
		}
		if o.scheduler != nil {
			o.scheduler.ScheduleRefresh(result.Kind)
		}
	}

	o.mu.Lock()
	if result.Outcome == OutcomeSuccess {
		o.state = Succeeded
	} else {
		o.state = Failed
	}
	o.last = result
	state := o.state
	o.mu.Unlock()

	notify(subs, state)
	return result
}

func notify(subs []func(State), state State) {
	for _, fn := range subs {
		fn(state)
	}
}
