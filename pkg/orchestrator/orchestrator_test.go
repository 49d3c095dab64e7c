package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"defi-hub/pkg/contracts"
	"defi-hub/pkg/intent"
)

var testBook = contracts.AddressBook{
	Token0:          common.HexToAddress("0x0000000000000000000000000000000000000001"),
	Token1:          common.HexToAddress("0x0000000000000000000000000000000000000002"),
	AMM:             common.HexToAddress("0x0000000000000000000000000000000000000003"),
	Hook:            common.HexToAddress("0x0000000000000000000000000000000000000004"),
	PositionManager: common.HexToAddress("0x0000000000000000000000000000000000000005"),
}

type writeCall struct {
	contract common.Address
	method   string
	args     []interface{}
}

// fakeWriter records writes in order and can fail at a given step or
// invoke a hook while a write is in flight.
type fakeWriter struct {
	mu      sync.Mutex
	calls   []writeCall
	failAt  int   // 1-based call index that fails; 0 never fails
	failErr error // error returned at failAt
	onWrite func(call int)
}

func (w *fakeWriter) Write(ctx context.Context, contract common.Address, method string, args ...interface{}) (*types.Receipt, error) {
	w.mu.Lock()
	w.calls = append(w.calls, writeCall{contract: contract, method: method, args: args})
	n := len(w.calls)
	hook := w.onWrite
	w.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if w.failAt != 0 && n == w.failAt {
		err := w.failErr
		if err == nil {
			err = errors.New("injected step failure")
		}
		return nil, err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (w *fakeWriter) recorded() []writeCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]writeCall{}, w.calls...)
}

type fakeScheduler struct {
	mu    sync.Mutex
	kinds []intent.Kind
}

func (s *fakeScheduler) ScheduleRefresh(kind intent.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, kind)
}

func (s *fakeScheduler) scheduled() []intent.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]intent.Kind{}, s.kinds...)
}

func mustSwap(t *testing.T, amount string) intent.Intent {
	t.Helper()
	it, err := intent.NewSwap(intent.Token0, amount)
	if err != nil {
		t.Fatalf("NewSwap failed: %v", err)
	}
	return it
}

func TestSwapRunsApproveThenSwap(t *testing.T) {
	writer := &fakeWriter{}
	scheduler := &fakeScheduler{}
	o := New(writer, scheduler, testBook)

	result, err := o.Submit(context.Background(), mustSwap(t, "10"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want success (err=%v)", result.Outcome, result.Err)
	}
	if result.Steps != 2 {
		t.Fatalf("steps = %d, want 2", result.Steps)
	}

	calls := writer.recorded()
	if len(calls) != 2 {
		t.Fatalf("recorded %d writes, want 2", len(calls))
	}
	if calls[0].contract != testBook.Token0 || calls[0].method != contracts.MethodApprove {
		t.Fatalf("step 1 = %s on %s, want approve on token0", calls[0].method, calls[0].contract.Hex())
	}
	if calls[1].contract != testBook.AMM || calls[1].method != contracts.MethodSwap {
		t.Fatalf("step 2 = %s on %s, want swap on amm", calls[1].method, calls[1].contract.Hex())
	}

	wantAmount, _ := new(big.Int).SetString("10000000000000000000", 10)
	if got := calls[0].args[1].(*big.Int); got.Cmp(wantAmount) != 0 {
		t.Fatalf("approve amount = %s, want %s", got, wantAmount)
	}
	if got := calls[1].args[1].(*big.Int); got.Cmp(wantAmount) != 0 {
		t.Fatalf("swap amount = %s, want %s", got, wantAmount)
	}
	if spender := calls[0].args[0].(common.Address); spender != testBook.AMM {
		t.Fatalf("approve spender = %s, want amm", spender.Hex())
	}

	if kinds := scheduler.scheduled(); len(kinds) != 1 || kinds[0] != intent.KindSwap {
		t.Fatalf("scheduled refreshes = %v, want [swap]", kinds)
	}
}

func TestAddLiquidityStepOrderAndHaltOnFailure(t *testing.T) {
	writer := &fakeWriter{failAt: 2}
	scheduler := &fakeScheduler{}
	o := New(writer, scheduler, testBook)

	it, err := intent.NewAddLiquidity("5", "7")
	if err != nil {
		t.Fatalf("NewAddLiquidity failed: %v", err)
	}

	result, err := o.Submit(context.Background(), it)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", result.Outcome)
	}
	if result.Err == nil {
		t.Fatal("failed result must carry an error")
	}

	// The failure at step 2 must prevent step 3 from ever being submitted.
	calls := writer.recorded()
	if len(calls) != 2 {
		t.Fatalf("recorded %d writes, want 2", len(calls))
	}
	if calls[0].contract != testBook.Token0 || calls[1].contract != testBook.Token1 {
		t.Fatal("approvals must run in token0-then-token1 order")
	}

	if len(scheduler.scheduled()) != 0 {
		t.Fatal("no refresh may be scheduled after a failed orchestration")
	}
	if o.State() != Failed {
		t.Fatalf("state = %s, want failed", o.State())
	}
}

func TestAddLiquiditySuccessRunsAllThreeSteps(t *testing.T) {
	writer := &fakeWriter{}
	o := New(writer, &fakeScheduler{}, testBook)

	it, _ := intent.NewAddLiquidity("5", "7")
	result, err := o.Submit(context.Background(), it)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", result.Outcome)
	}

	calls := writer.recorded()
	want := []string{contracts.MethodApprove, contracts.MethodApprove, contracts.MethodAddLiquidity}
	if len(calls) != len(want) {
		t.Fatalf("recorded %d writes, want %d", len(calls), len(want))
	}
	for i, method := range want {
		if calls[i].method != method {
			t.Fatalf("step %d = %s, want %s", i+1, calls[i].method, method)
		}
	}
}

func TestFaucetTwiceProducesTwoIndependentOrchestrations(t *testing.T) {
	writer := &fakeWriter{}
	o := New(writer, &fakeScheduler{}, testBook)

	first, err := o.Submit(context.Background(), intent.NewFaucet(intent.Token0))
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	second, err := o.Submit(context.Background(), intent.NewFaucet(intent.Token0))
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}

	if first.ID == second.ID {
		t.Fatal("each orchestration must have its own id")
	}

	calls := writer.recorded()
	if len(calls) != 2 {
		t.Fatalf("recorded %d writes, want 2 single-step runs", len(calls))
	}
	for _, call := range calls {
		if call.method != contracts.MethodFaucet {
			t.Fatalf("unexpected method %s", call.method)
		}
	}
}

func TestPendingCoversTheWholeOrchestration(t *testing.T) {
	writer := &fakeWriter{}
	o := New(writer, &fakeScheduler{}, testBook)

	writer.onWrite = func(int) {
		if !o.Pending() {
			t.Error("orchestrator must be pending while a step is in flight")
		}
	}

	if o.Pending() {
		t.Fatal("pending before any submission")
	}
	if _, err := o.Submit(context.Background(), mustSwap(t, "1")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if o.Pending() {
		t.Fatal("pending after terminal outcome")
	}
}

func TestTransitionsAreObservable(t *testing.T) {
	writer := &fakeWriter{}
	o := New(writer, &fakeScheduler{}, testBook)

	var mu sync.Mutex
	var seen []State
	o.OnTransition(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	if _, err := o.Submit(context.Background(), mustSwap(t, "1")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != Running || seen[1] != Succeeded {
		t.Fatalf("transitions = %v, want [running succeeded]", seen)
	}
}

func TestSubmitWhileRunningReturnsBusy(t *testing.T) {
	release := make(chan struct{})
	writer := &fakeWriter{}
	writer.onWrite = func(int) { <-release }
	o := New(writer, &fakeScheduler{}, testBook)

	id, err := o.SubmitAsync(context.Background(), mustSwap(t, "1"))
	if err != nil {
		t.Fatalf("async submit failed: %v", err)
	}
	if id.String() == "" {
		t.Fatal("expected an orchestration id")
	}

	// The first orchestration holds the Running state; a second
	// submission must be rejected, not queued.
	if _, err := o.Submit(context.Background(), intent.NewFaucet(intent.Token1)); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}

	close(release)
	waitForTerminal(t, o)
}

func TestContextCancellationIsReportedAsCancelled(t *testing.T) {
	writer := &fakeWriter{failAt: 1, failErr: fmt.Errorf("user rejected: %w", context.Canceled)}
	o := New(writer, &fakeScheduler{}, testBook)

	result, err := o.Submit(context.Background(), mustSwap(t, "1"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Outcome != OutcomeCancelled {
		t.Fatalf("outcome = %s, want cancelled", result.Outcome)
	}
}

func TestOnSuccessFiresOnlyOnSuccess(t *testing.T) {
	writer := &fakeWriter{failAt: 1}
	o := New(writer, &fakeScheduler{}, testBook)

	var cleared []intent.Kind
	o.OnSuccess(func(kind intent.Kind) { cleared = append(cleared, kind) })

	if _, err := o.Submit(context.Background(), mustSwap(t, "1")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(cleared) != 0 {
		t.Fatal("input reset must not run after a failed orchestration")
	}

	writer.failAt = 0
	if _, err := o.Submit(context.Background(), mustSwap(t, "1")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(cleared) != 1 || cleared[0] != intent.KindSwap {
		t.Fatalf("cleared = %v, want [swap]", cleared)
	}
}

type hookScheduler struct {
	fn func(intent.Kind)
}

func (s *hookScheduler) ScheduleRefresh(kind intent.Kind) { s.fn(kind) }

func TestSuccessSideEffectsRunWhileStillPending(t *testing.T) {
	writer := &fakeWriter{}
	var o *Orchestrator

	scheduler := &hookScheduler{fn: func(intent.Kind) {
		if !o.Pending() {
			t.Error("refresh hand-off must happen before the pending state clears")
		}
	}}
	o = New(writer, scheduler, testBook)
	o.OnSuccess(func(intent.Kind) {
		if !o.Pending() {
			t.Error("input reset must happen before the pending state clears")
		}
	})

	result, err := o.Submit(context.Background(), mustSwap(t, "1"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %s, want success", result.Outcome)
	}
	if o.Pending() {
		t.Fatal("pending after terminal outcome")
	}
}

func waitForTerminal(t *testing.T, o *Orchestrator) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if s := o.State(); s == Succeeded || s == Failed {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("orchestration did not reach a terminal state, state=%s", o.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}
