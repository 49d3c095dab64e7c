package refresher

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"defi-hub/pkg/intent"
	"defi-hub/pkg/statecache"
)

var ammAddr = common.HexToAddress("0x0000000000000000000000000000000000000003")

type countingEntry struct {
	mu    sync.Mutex
	count int
}

func (e *countingEntry) fetch(ctx context.Context) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count++
	return big.NewInt(int64(e.count)), nil
}

func (e *countingEntry) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

func setup(t *testing.T, delay time.Duration) (*Scheduler, *statecache.Cache, map[string]*countingEntry) {
	t.Helper()
	cache := statecache.New()
	entries := make(map[string]*countingEntry)

	for _, method := range []string{"reserve0", "reserve1", "balance"} {
		e := &countingEntry{}
		entries[method] = e
		cache.Subscribe(context.Background(), statecache.NewKey(ammAddr, method), nil, e.fetch)
	}

	return New(cache, delay), cache, entries
}

func TestScheduleRefreshFiresAfterSettleDelay(t *testing.T) {
	scheduler, _, entries := setup(t, 10*time.Millisecond)
	scheduler.Bind(intent.KindSwap, []statecache.Key{
		statecache.NewKey(ammAddr, "reserve0"),
		statecache.NewKey(ammAddr, "reserve1"),
	})

	scheduler.ScheduleRefresh(intent.KindSwap)

	// Before the delay elapses nothing is refetched.
	if entries["reserve0"].calls() != 1 {
		t.Fatal("refresh must not fire before the settle delay")
	}

	waitFor(t, func() bool { return entries["reserve0"].calls() == 2 && entries["reserve1"].calls() == 2 })

	if entries["balance"].calls() != 1 {
		t.Fatal("entries outside the bound set must not be refetched")
	}
}

func TestCancelAllPreventsPendingRefresh(t *testing.T) {
	scheduler, _, entries := setup(t, 50*time.Millisecond)
	scheduler.Bind(intent.KindFaucet, []statecache.Key{statecache.NewKey(ammAddr, "balance")})

	scheduler.ScheduleRefresh(intent.KindFaucet)
	scheduler.CancelAll()

	time.Sleep(100 * time.Millisecond)
	if entries["balance"].calls() != 1 {
		t.Fatal("cancelled refresh must never fire")
	}
}

func TestEachCompletionSchedulesItsOwnRefresh(t *testing.T) {
	scheduler, _, entries := setup(t, 10*time.Millisecond)
	scheduler.Bind(intent.KindFaucet, []statecache.Key{statecache.NewKey(ammAddr, "balance")})

	scheduler.ScheduleRefresh(intent.KindFaucet)
	scheduler.ScheduleRefresh(intent.KindFaucet)

	waitFor(t, func() bool { return entries["balance"].calls() == 3 })
}

func TestKeysAffectedByReturnsBoundSet(t *testing.T) {
	scheduler, _, _ := setup(t, time.Millisecond)
	keys := []statecache.Key{
		statecache.NewKey(ammAddr, "reserve0"),
		statecache.NewKey(ammAddr, "reserve1"),
	}
	scheduler.Bind(intent.KindAddLiquidity, keys)

	got := scheduler.KeysAffectedBy(intent.KindAddLiquidity)
	if len(got) != 2 {
		t.Fatalf("got %d keys, want 2", len(got))
	}
	if len(scheduler.KeysAffectedBy(intent.KindFaucet)) != 0 {
		t.Fatal("unbound kind must have an empty refresh set")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not reached in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
