// Package dashboard serves the hub state over a local HTTP JSON API:
// the same read model the browser dashboard renders, plus intent
// submission endpoints gated by the orchestrator's pending state.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"defi-hub/pkg/hub"
	"defi-hub/pkg/intent"
	"defi-hub/pkg/orchestrator"
)

// Server exposes the dashboard API for one hub.
type Server struct {
	hub            *hub.Hub
	pointsDecimals int
}

// NewServer creates a dashboard server over the given hub.
func NewServer(h *hub.Hub, pointsDecimals int) *Server {
	return &Server{hub: h, pointsDecimals: pointsDecimals}
}

// Router builds the API routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods("GET")
	v1.HandleFunc("/state", s.handleState).Methods("GET")
	v1.HandleFunc("/orchestration", s.handleOrchestration).Methods("GET")

	intents := v1.PathPrefix("/intents").Subrouter()
	intents.HandleFunc("/swap", s.handleSwap).Methods("POST")
	intents.HandleFunc("/liquidity", s.handleLiquidity).Methods("POST")
	intents.HandleFunc("/faucet", s.handleFaucet).Methods("POST")

	return router
}

// ListenAndServe runs the API server until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	fmt.Printf("[Dashboard] Listening on http://%s\n", addr)
	return srv.ListenAndServe()
}

type amountView struct {
	Raw     string `json:"raw"`
	Display string `json:"display"`
}

type stateResponse struct {
	Connected bool        `json:"connected"`
	Account   string      `json:"account,omitempty"`
	Pending   bool        `json:"pending"`
	Balance0  *amountView `json:"balance0"`
	Balance1  *amountView `json:"balance1"`
	Reserve0  *amountView `json:"reserve0"`
	Reserve1  *amountView `json:"reserve1"`
	FeePct    string      `json:"fee_pct,omitempty"`
	Points    *amountView `json:"points"`
	Shares0   string      `json:"shares0,omitempty"`
	Shares1   string      `json:"shares1,omitempty"`
	Drafts    hub.Drafts  `json:"drafts"`
}

type orchestrationResponse struct {
	State   string `json:"state"`
	ID      string `json:"id,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
	Steps   int    `json:"steps,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{
		Connected: s.hub.Session.Connected(),
		Pending:   s.hub.Orchestrator.Pending(),
		Drafts:    s.hub.DraftValues(),
	}
	if account, ok := s.hub.Session.Account(); ok {
		resp.Account = account.Hex()
	}

	resp.Balance0 = viewAmount(s.hub.Balance(intent.Token0))
	resp.Balance1 = viewAmount(s.hub.Balance(intent.Token1))

	if r0, r1, ok := s.hub.Reserves(); ok {
		resp.Reserve0 = viewAmount(r0, true)
		resp.Reserve1 = viewAmount(r1, true)
	}
	if fee, ok := s.hub.Fee(); ok {
		// Fee is in basis points of 10000; 30 renders as 0.30.
		resp.FeePct = intent.FormatAmount(fee, 2, 2)
	}
	if points, ok := s.hub.Points(); ok {
		resp.Points = &amountView{
			Raw:     points.String(),
			Display: intent.FormatAmount(points, s.pointsDecimals, 2),
		}
	}
	if position, ok := s.hub.Position(); ok {
		resp.Shares0 = position.Shares0.String()
		resp.Shares1 = position.Shares1.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOrchestration(w http.ResponseWriter, r *http.Request) {
	resp := orchestrationResponse{State: s.hub.Orchestrator.State().String()}
	if last := s.hub.Orchestrator.LastResult(); last != nil {
		resp.ID = last.ID.String()
		resp.Kind = last.Kind.String()
		resp.Outcome = last.Outcome.String()
		resp.Steps = last.Steps
		if last.Err != nil {
			resp.Error = last.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type swapRequest struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	tokenIn, err := intent.ParseTokenID(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	it, err := intent.NewSwap(tokenIn, req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.submitAsync(w, r, it, func(d *hub.Drafts) {
		d.SwapAmount = req.Amount
		d.SwapToken = tokenIn.String()
	})
}

type liquidityRequest struct {
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	var req liquidityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	it, err := intent.NewAddLiquidity(req.Amount0, req.Amount1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.submitAsync(w, r, it, func(d *hub.Drafts) {
		d.LiquidityAmount0 = req.Amount0
		d.LiquidityAmount1 = req.Amount1
	})
}

type faucetRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	token, err := intent.ParseTokenID(req.Token)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.submitAsync(w, r, intent.NewFaucet(token), nil)
}

// submitAsync claims the orchestration and answers immediately; progress
// is observable through /orchestration and /state. The draft update runs
// only once the submission is accepted, so a rejected request never
// disturbs the drafts belonging to the in-flight orchestration.
func (s *Server) submitAsync(w http.ResponseWriter, r *http.Request, it intent.Intent, drafts func(*hub.Drafts)) {
	// A write once submitted runs to completion or failure regardless of
	// the HTTP request lifetime, so the orchestration must not inherit
	// the request context.
	id, err := s.hub.SubmitAsync(context.Background(), it)
	switch {
	case errors.Is(err, orchestrator.ErrBusy):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, hub.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
	default:
		if drafts != nil {
			s.hub.SetDrafts(drafts)
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     id.String(),
			"intent": it.Kind().String(),
		})
	}
}

func viewAmount(raw *big.Int, ok bool) *amountView {
	if !ok || raw == nil {
		return nil
	}
	return &amountView{
		Raw:     raw.String(),
		Display: intent.FormatAmount(raw, intent.TokenDecimals, 2),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
