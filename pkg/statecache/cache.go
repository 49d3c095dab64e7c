// Package statecache caches the latest observed values of a fixed set of
// on-chain read queries, keyed by contract, method and canonicalized
// arguments. Entries carry an enabling predicate; a disabled entry always
// presents as absent so one account's values are never shown for another.
package statecache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Key identifies one cached read query. Args is the canonical rendering
// of the call arguments, including the connected account for
// account-scoped queries.
type Key struct {
	Contract common.Address
	Method   string
	Args     string
}

// NewKey builds a Key with canonicalized arguments.
func NewKey(contract common.Address, method string, args ...interface{}) Key {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%v", arg))
	}
	return Key{Contract: contract, Method: method, Args: strings.Join(parts, "/")}
}

// String renders the key for logging.
func (k Key) String() string {
	if k.Args == "" {
		return fmt.Sprintf("%s.%s", k.Contract.Hex(), k.Method)
	}
	return fmt.Sprintf("%s.%s(%s)", k.Contract.Hex(), k.Method, k.Args)
}

// FetchFunc performs the underlying chain read for an entry.
type FetchFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	enabledWhen func() bool
	fetch       FetchFunc

	value interface{}
	ok    bool

	// gen is bumped whenever the entry is disabled or re-keyed, so an
	// in-flight fetch that started under the old generation discards its
	// result instead of resurrecting stale state.
	gen uint64
}

// Cache owns all cached read entries. The view layer only observes;
// mutation happens through Refetch, RefetchMany and Reevaluate.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]*entry)}
}

// Handle is a live view of one entry.
type Handle struct {
	cache *Cache
	key   Key
}

// Subscribe registers an entry for key, replacing any previous
// registration, and returns a live handle. If the enabling predicate
// already holds the first value is fetched immediately.
func (c *Cache) Subscribe(ctx context.Context, key Key, enabledWhen func() bool, fetch FetchFunc) *Handle {
	if enabledWhen == nil {
		enabledWhen = func() bool { return true }
	}

	c.mu.Lock()
	c.entries[key] = &entry{enabledWhen: enabledWhen, fetch: fetch}
	c.mu.Unlock()

	if enabledWhen() {
		c.refetch(ctx, key)
	}

	return &Handle{cache: c, key: key}
}

// Unsubscribe drops the entry for key.
func (c *Cache) Unsubscribe(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Value returns the entry's current value. ok is false while the entry
// is disabled, unfetched or failed; absent is "unknown", not zero.
func (h *Handle) Value() (interface{}, bool) {
	return h.cache.Value(h.key)
}

// Refetch re-runs the entry's fetch if it is enabled.
func (h *Handle) Refetch(ctx context.Context) {
	h.cache.refetch(ctx, h.key)
}

// Value returns the cached value for key, absent when disabled or unset.
func (c *Cache) Value(key Key) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !e.ok || !e.enabledWhen() {
		return nil, false
	}
	return e.value, true
}

// Refetch re-reads a single entry.
func (c *Cache) Refetch(ctx context.Context, key Key) {
	c.refetch(ctx, key)
}

// RefetchMany re-reads exactly the given keys. Unknown keys are skipped;
// the call has no effect beyond updating the corresponding entries.
func (c *Cache) RefetchMany(ctx context.Context, keys []Key) {
	for _, key := range keys {
		c.refetch(ctx, key)
	}
}

// Reevaluate re-applies every entry's enabling predicate: disabled
// entries are reset to absent, enabled-but-empty entries are fetched.
// Call this after a connect/disconnect transition.
func (c *Cache) Reevaluate(ctx context.Context) {
	c.mu.Lock()
	var toFetch []Key
	for key, e := range c.entries {
		if !e.enabledWhen() {
			e.value = nil
			e.ok = false
			e.gen++
			continue
		}
		if !e.ok {
			toFetch = append(toFetch, key)
		}
	}
	c.mu.Unlock()

	// Deterministic order keeps logs and tests stable.
	sort.Slice(toFetch, func(i, j int) bool { return toFetch[i].String() < toFetch[j].String() })
	for _, key := range toFetch {
		c.refetch(ctx, key)
	}
}

// refetch runs an entry's fetch and stores the result, unless the entry
// was disabled or invalidated while the fetch was in flight.
func (c *Cache) refetch(ctx context.Context, key Key) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok || !e.enabledWhen() {
		c.mu.Unlock()
		return
	}
	fetch := e.fetch
	gen := e.gen
	c.mu.Unlock()

	value, err := fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok = c.entries[key]
	if !ok || e.gen != gen || !e.enabledWhen() {
		// The session changed under the fetch; the result belongs to a
		// previous generation and must not surface.
		return
	}
	if err != nil {
		e.value = nil
		e.ok = false
		return
	}
	e.value = value
	e.ok = true
}
