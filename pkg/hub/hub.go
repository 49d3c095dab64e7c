// Package hub wires the session, read-state cache, refresh scheduler and
// transaction orchestrator over one chain client. It is the single entry
// point the CLI and the HTTP dashboard consume.
package hub

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"defi-hub/config"
	"defi-hub/pkg/chain"
	"defi-hub/pkg/contracts"
	"defi-hub/pkg/intent"
	"defi-hub/pkg/orchestrator"
	"defi-hub/pkg/refresher"
	"defi-hub/pkg/session"
	"defi-hub/pkg/statecache"
)

// ErrNotConnected is returned when an intent is submitted without a
// connected account.
var ErrNotConnected = errors.New("no account connected")

// Hub owns the full dashboard state for one deployment.
type Hub struct {
	client chain.Client
	book   contracts.AddressBook
	cfg    *config.Config

	Session      *session.Session
	Cache        *statecache.Cache
	Scheduler    *refresher.Scheduler
	Orchestrator *orchestrator.Orchestrator

	mu          sync.Mutex
	globalKeys  globalKeys
	accountKeys *accountKeys
	drafts      Drafts
}

type globalKeys struct {
	reserve0 statecache.Key
	reserve1 statecache.Key
	fee      statecache.Key
}

type accountKeys struct {
	account  common.Address
	balance0 statecache.Key
	balance1 statecache.Key
	points   statecache.Key
	position statecache.Key
}

// Drafts holds the not-yet-submitted input values backing the dashboard
// forms. They are cleared when the intent they belong to completes, so
// stale values are never resubmitted.
type Drafts struct {
	SwapAmount       string `json:"swap_amount"`
	SwapToken        string `json:"swap_token"`
	LiquidityAmount0 string `json:"liquidity_amount0"`
	LiquidityAmount1 string `json:"liquidity_amount1"`
}

// New builds a hub over the given chain client. Global (account-free)
// read entries are subscribed immediately; account-scoped entries appear
// on Connect.
func New(cfg *config.Config, client chain.Client) (*Hub, error) {
	book, err := cfg.Addresses()
	if err != nil {
		return nil, err
	}

	client.Register(book.Token0, contracts.ERC20)
	client.Register(book.Token1, contracts.ERC20)
	client.Register(book.AMM, contracts.AMM)
	client.Register(book.Hook, contracts.Hook)
	client.Register(book.PositionManager, contracts.PositionManager)

	cache := statecache.New()
	scheduler := refresher.New(cache, cfg.SettleDelay)

	h := &Hub{
		client:    client,
		book:      book,
		cfg:       cfg,
		Session:   session.New(),
		Cache:     cache,
		Scheduler: scheduler,
	}
	h.Orchestrator = orchestrator.New(client, scheduler, book)
	h.Orchestrator.OnSuccess(h.clearDrafts)

	h.subscribeGlobalEntries(context.Background())
	h.bindRefreshSets()

	// A disconnect must cancel pending refreshes and reset
	// account-scoped entries to absent before anything re-renders.
	h.Session.OnChange(func() {
		if !h.Session.Connected() {
			h.Scheduler.CancelAll()
		}
		h.Cache.Reevaluate(context.Background())
	})

	return h, nil
}

// Book returns the deployed contract addresses.
func (h *Hub) Book() contracts.AddressBook {
	return h.book
}

// Connect binds the account-scoped read entries to the given account and
// marks it connected. Entry values are fetched as the session transition
// re-evaluates their enabling predicates.
func (h *Hub) Connect(account common.Address) {
	h.mu.Lock()
	old := h.accountKeys
	keys := &accountKeys{
		account:  account,
		balance0: statecache.NewKey(h.book.Token0, contracts.MethodBalanceOf, account),
		balance1: statecache.NewKey(h.book.Token1, contracts.MethodBalanceOf, account),
		points:   statecache.NewKey(h.book.Hook, contracts.MethodBalanceOf, account, contracts.PointsTokenID),
		position: statecache.NewKey(h.book.PositionManager, contracts.MethodPosition, account),
	}
	h.accountKeys = keys
	h.mu.Unlock()

	if old != nil && old.account != account {
		h.Cache.Unsubscribe(old.balance0)
		h.Cache.Unsubscribe(old.balance1)
		h.Cache.Unsubscribe(old.points)
		h.Cache.Unsubscribe(old.position)
	}

	enabled := func() bool { return h.Session.Is(account) }
	ctx := context.Background()

	h.Cache.Subscribe(ctx, keys.balance0, enabled, h.fetchUint256(h.book.Token0, contracts.MethodBalanceOf, account))
	h.Cache.Subscribe(ctx, keys.balance1, enabled, h.fetchUint256(h.book.Token1, contracts.MethodBalanceOf, account))
	h.Cache.Subscribe(ctx, keys.points, enabled, h.fetchUint256(h.book.Hook, contracts.MethodBalanceOf, account, contracts.PointsTokenID))
	h.Cache.Subscribe(ctx, keys.position, enabled, h.fetchPosition(account))

	h.bindRefreshSets()
	h.Session.Connect(account)
}

// Disconnect cancels pending refreshes, clears the session and destroys
// the account-scoped entries.
func (h *Hub) Disconnect() {
	h.Scheduler.CancelAll()
	h.Session.Disconnect()

	h.mu.Lock()
	keys := h.accountKeys
	h.accountKeys = nil
	h.mu.Unlock()

	if keys != nil {
		h.Cache.Unsubscribe(keys.balance0)
		h.Cache.Unsubscribe(keys.balance1)
		h.Cache.Unsubscribe(keys.points)
		h.Cache.Unsubscribe(keys.position)
	}
	h.bindRefreshSets()
}

// SubmitSwap validates and runs a swap intent, blocking until the
// terminal outcome.
func (h *Hub) SubmitSwap(ctx context.Context, tokenIn intent.TokenID, amount string) (*orchestrator.Result, error) {
	if !h.Session.Connected() {
		return nil, ErrNotConnected
	}
	it, err := intent.NewSwap(tokenIn, amount)
	if err != nil {
		return nil, err
	}
	return h.Orchestrator.Submit(ctx, it)
}

// SubmitAddLiquidity validates and runs an add-liquidity intent.
func (h *Hub) SubmitAddLiquidity(ctx context.Context, amount0, amount1 string) (*orchestrator.Result, error) {
	if !h.Session.Connected() {
		return nil, ErrNotConnected
	}
	it, err := intent.NewAddLiquidity(amount0, amount1)
	if err != nil {
		return nil, err
	}
	return h.Orchestrator.Submit(ctx, it)
}

// SubmitFaucet runs a faucet intent for the given token.
func (h *Hub) SubmitFaucet(ctx context.Context, token intent.TokenID) (*orchestrator.Result, error) {
	if !h.Session.Connected() {
		return nil, ErrNotConnected
	}
	return h.Orchestrator.Submit(ctx, intent.NewFaucet(token))
}

// SubmitAsync validates the intent, claims the orchestration and runs it
// in the background, returning the orchestration id.
func (h *Hub) SubmitAsync(ctx context.Context, it intent.Intent) (uuid.UUID, error) {
	if !h.Session.Connected() {
		return uuid.Nil, ErrNotConnected
	}
	return h.Orchestrator.SubmitAsync(ctx, it)
}

// RefetchAll re-reads every subscribed entry immediately.
func (h *Hub) RefetchAll(ctx context.Context) {
	keys := []statecache.Key{h.globalKeys.reserve0, h.globalKeys.reserve1, h.globalKeys.fee}

	h.mu.Lock()
	if h.accountKeys != nil {
		keys = append(keys, h.accountKeys.balance0, h.accountKeys.balance1, h.accountKeys.points, h.accountKeys.position)
	}
	h.mu.Unlock()

	h.Cache.RefetchMany(ctx, keys)
}

// Balance returns the connected account's cached balance of a token.
func (h *Hub) Balance(token intent.TokenID) (*big.Int, bool) {
	h.mu.Lock()
	keys := h.accountKeys
	h.mu.Unlock()
	if keys == nil {
		return nil, false
	}
	key := keys.balance0
	if token == intent.Token1 {
		key = keys.balance1
	}
	return uint256Value(h.Cache, key)
}

// Reserves returns the cached pool reserves.
func (h *Hub) Reserves() (reserve0, reserve1 *big.Int, ok bool) {
	r0, ok0 := uint256Value(h.Cache, h.globalKeys.reserve0)
	r1, ok1 := uint256Value(h.Cache, h.globalKeys.reserve1)
	return r0, r1, ok0 && ok1
}

// Fee returns the cached dynamic fee in basis points (base 10000).
func (h *Hub) Fee() (*big.Int, bool) {
	return uint256Value(h.Cache, h.globalKeys.fee)
}

// Points returns the connected account's cached points balance, raw.
// Whether points are a fixed-point amount or a unit-less counter is a
// contract-side convention; scaling is left to the display layer.
func (h *Hub) Points() (*big.Int, bool) {
	h.mu.Lock()
	keys := h.accountKeys
	h.mu.Unlock()
	if keys == nil {
		return nil, false
	}
	return uint256Value(h.Cache, keys.points)
}

// Position returns the connected account's cached optimized position.
func (h *Hub) Position() (contracts.Position, bool) {
	h.mu.Lock()
	keys := h.accountKeys
	h.mu.Unlock()
	if keys == nil {
		return contracts.Position{}, false
	}
	value, ok := h.Cache.Value(keys.position)
	if !ok {
		return contracts.Position{}, false
	}
	position, ok := value.(contracts.Position)
	return position, ok
}

// SetDrafts replaces the dashboard's draft input values.
func (h *Hub) SetDrafts(update func(*Drafts)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	update(&h.drafts)
}

// DraftValues returns a copy of the current draft inputs.
func (h *Hub) DraftValues() Drafts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.drafts
}

// clearDrafts resets the inputs belonging to a completed intent.
func (h *Hub) clearDrafts(kind intent.Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch kind {
	case intent.KindSwap:
		h.drafts.SwapAmount = ""
	case intent.KindAddLiquidity:
		h.drafts.LiquidityAmount0 = ""
		h.drafts.LiquidityAmount1 = ""
	}
}

// subscribeGlobalEntries registers the account-free read entries:
// the two pool reserves and the dynamic fee.
func (h *Hub) subscribeGlobalEntries(ctx context.Context) {
	h.globalKeys = globalKeys{
		reserve0: statecache.NewKey(h.book.AMM, contracts.MethodReserve0),
		reserve1: statecache.NewKey(h.book.AMM, contracts.MethodReserve1),
		fee:      statecache.NewKey(h.book.Hook, contracts.MethodDynamicFee),
	}
	h.Cache.Subscribe(ctx, h.globalKeys.reserve0, nil, h.fetchUint256(h.book.AMM, contracts.MethodReserve0))
	h.Cache.Subscribe(ctx, h.globalKeys.reserve1, nil, h.fetchUint256(h.book.AMM, contracts.MethodReserve1))
	h.Cache.Subscribe(ctx, h.globalKeys.fee, nil, h.fetchUint256(h.book.Hook, contracts.MethodDynamicFee))
}

// bindRefreshSets fixes which entries each intent kind refreshes after
// its settle delay: faucet touches the balances, add-liquidity also the
// reserves, and swap additionally the points balance.
func (h *Hub) bindRefreshSets() {
	h.mu.Lock()
	keys := h.accountKeys
	h.mu.Unlock()

	var balance0, balance1, points []statecache.Key
	if keys != nil {
		balance0 = []statecache.Key{keys.balance0}
		balance1 = []statecache.Key{keys.balance1}
		points = []statecache.Key{keys.points}
	}

	balances := append(append([]statecache.Key{}, balance0...), balance1...)
	reserves := []statecache.Key{h.globalKeys.reserve0, h.globalKeys.reserve1}

	h.Scheduler.Bind(intent.KindFaucet, balances)
	h.Scheduler.Bind(intent.KindAddLiquidity, append(append([]statecache.Key{}, balances...), reserves...))
	h.Scheduler.Bind(intent.KindSwap, append(append(append([]statecache.Key{}, balances...), reserves...), points...))
}

func (h *Hub) fetchUint256(contract common.Address, method string, args ...interface{}) statecache.FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		out, err := h.client.Read(ctx, contract, method, args...)
		if err != nil {
			return nil, err
		}
		return contracts.DecodeUint256(out)
	}
}

func (h *Hub) fetchPosition(account common.Address) statecache.FetchFunc {
	return func(ctx context.Context) (interface{}, error) {
		out, err := h.client.Read(ctx, h.book.PositionManager, contracts.MethodPosition, account)
		if err != nil {
			return nil, err
		}
		return contracts.DecodePosition(out)
	}
}

func uint256Value(cache *statecache.Cache, key statecache.Key) (*big.Int, bool) {
	value, ok := cache.Value(key)
	if !ok {
		return nil, false
	}
	amount, ok := value.(*big.Int)
	return amount, ok
}
