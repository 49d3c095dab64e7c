// Package refresher schedules the delayed bulk re-read that follows a
// confirmed orchestration. The settle delay tolerates on-chain state
// propagation lag; it is not a correctness guarantee.
package refresher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"defi-hub/pkg/intent"
	"defi-hub/pkg/statecache"
)

// DefaultSettleDelay is the wait between the final write confirmation of
// an intent and the bulk re-read of its affected entries.
const DefaultSettleDelay = 2 * time.Second

// Scheduler fires a delayed RefetchMany for the entries affected by each
// intent kind. Pending timers are cancellable so a refresh never outlives
// a disconnect.
type Scheduler struct {
	cache *statecache.Cache
	delay time.Duration

	mu      sync.Mutex
	mapping map[intent.Kind][]statecache.Key
	pending map[*time.Timer]context.CancelFunc
}

// New creates a scheduler over the given cache. A non-positive delay
// falls back to DefaultSettleDelay.
func New(cache *statecache.Cache, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	return &Scheduler{
		cache:   cache,
		delay:   delay,
		mapping: make(map[intent.Kind][]statecache.Key),
		pending: make(map[*time.Timer]context.CancelFunc),
	}
}

// Bind fixes the set of cache keys affected by an intent kind.
func (s *Scheduler) Bind(kind intent.Kind, keys []statecache.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping[kind] = keys
}

// KeysAffectedBy returns the keys refreshed after an intent of the given
// kind completes.
func (s *Scheduler) KeysAffectedBy(kind intent.Kind) []statecache.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]statecache.Key{}, s.mapping[kind]...)
}

// ScheduleRefresh arms a timer that refetches the kind's affected keys
// after the settle delay. Each completed orchestration schedules its own
// refresh; CancelAll discards any that have not fired yet.
func (s *Scheduler) ScheduleRefresh(kind intent.Kind) {
	keys := s.KeysAffectedBy(kind)
	if len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	timer := time.NewTimer(s.delay)
	s.pending[timer] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.pending, timer)
			s.mu.Unlock()
			cancel()
		}()

		select {
		case <-timer.C:
			fmt.Printf("[Refresher] Settled; refreshing %d entries after %s\n", len(keys), kind)
			s.cache.RefetchMany(ctx, keys)
		case <-ctx.Done():
			timer.Stop()
		}
	}()
}

// CancelAll discards every pending refresh. Called on disconnect so a
// delayed refresh never runs for an account that is no longer active.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.pending))
	for _, cancel := range s.pending {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
