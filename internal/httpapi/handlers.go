package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"nft_market/internal/domain"
	"nft_market/internal/engine"
	"nft_market/internal/execution"
	"nft_market/internal/rotation"
)

// AccountHeader carries the viewer identity.
const AccountHeader = "X-Account"

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type accountRequest struct {
	Address string `json:"address"` // empty disconnects
}

type ledgerStatus struct {
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
	Breaker    string `json:"breaker,omitempty"`
}

type buyRequest struct {
	Contract string `json:"contract"`
	ItemID   uint64 `json:"item_id"`
	Price    string `json:"price,omitempty"` // whole units; empty pays the listed price
}

type randomRequest struct {
	Recipient string `json:"recipient"`
}

type rotationRequest struct {
	Index   int     `json:"index"`
	Hovered bool    `json:"hovered"`
	DeltaY  float64 `json:"delta_y"`
	Pointer bool    `json:"pointer"`
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	page := s.Renderer.Render(s.Market.Snapshot(), s.viewer(r))
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) putMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !decode(w, r, &req) {
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		writeError(w, domain.NewValidationError("mode", err.Error()))
		return
	}

	if err := s.Market.SetMode(r.Context(), mode); err != nil {
		writeError(w, err)
		return
	}
	if s.Modes != nil {
		if err := s.Modes.SaveMode(mode); err != nil {
			slog.Warn("Failed to persist mode", slog.Any("error", err))
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"mode": mode.String()})
}

func (s *Server) putAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decode(w, r, &req) {
		return
	}
	if s.Account == nil {
		writeError(w, errors.New("no wallet configured"))
		return
	}

	addr := strings.ToLower(strings.TrimSpace(req.Address))
	if addr != "" && !common.IsHexAddress(addr) {
		writeError(w, domain.NewValidationError("address", "not a hex address"))
		return
	}
	s.Account.Set(addr)
	slog.Info("Account changed", slog.String("address", addr))
	writeJSON(w, http.StatusOK, map[string]string{"address": addr})
}

func (s *Server) getLedger(w http.ResponseWriter, _ *http.Request) {
	if s.Ledger == nil {
		writeJSON(w, http.StatusOK, ledgerStatus{})
		return
	}
	writeJSON(w, http.StatusOK, ledgerStatus{
		Configured: true,
		Connected:  s.Ledger.Connected(),
		Breaker:    s.Ledger.State().String(),
	})
}

func (s *Server) postRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.Market.Refetch(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) postDeposit(w http.ResponseWriter, r *http.Request) {
	var req execution.DepositRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.Actions.Deposit(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "listed"})
}

func (s *Server) postBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Contract) == "" {
		writeError(w, domain.NewValidationError("contract", "required"))
		return
	}

	key := domain.NewListingKey(req.Contract, req.ItemID)
	var price *uint256.Int
	if strings.TrimSpace(req.Price) != "" {
		amount, err := domain.ParseAmount(req.Price)
		if err != nil {
			writeError(w, domain.NewValidationError("price", err.Error()))
			return
		}
		price = amount
	}

	if err := s.Actions.Buy(r.Context(), key, price); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "bought", "key": key.String()})
}

func (s *Server) postRandom(w http.ResponseWriter, r *http.Request) {
	var req randomRequest
	if !decode(w, r, &req) {
		return
	}
	picked, err := s.Actions.RandomAssign(r.Context(), req.Recipient)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":       picked.Key().String(),
		"title":     picked.Title(),
		"recipient": strings.TrimSpace(req.Recipient),
	})
}

func (s *Server) postRotation(w http.ResponseWriter, r *http.Request) {
	var req rotationRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	var in rotation.Input
	switch mux.Vars(r)["action"] {
	case "next":
		in = rotation.Next()
		in.Pointer = req.Pointer
	case "prev":
		in = rotation.Prev()
		in.Pointer = req.Pointer
	case "select":
		in = rotation.Select(req.Index)
	case "hover":
		in = rotation.Hover(req.Hovered)
	case "wheel":
		in = rotation.Wheel(req.DeltaY)
	}

	if err := s.Market.Rotate(r.Context(), in); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) getPending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Actions.Pending())
}

func (s *Server) deletePending(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, domain.NewValidationError("id", "not a uuid"))
		return
	}
	if !s.Actions.Dismiss(id) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no pending transaction " + id.String()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getTransactions(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeJSON(w, http.StatusOK, []domain.TxRecord{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, domain.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}

	recs, err := s.History.ListRecords(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) getMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Metrics.Snapshot())
}

// viewer prefers the request header over the configured account.
func (s *Server) viewer(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get(AccountHeader)); v != "" {
		return v
	}
	if s.Account != nil {
		return s.Account.Address()
	}
	return ""
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, domain.NewValidationError("body", "malformed JSON"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", slog.Any("error", err))
	}
}

// writeError maps the error taxonomy onto status codes.
func writeError(w http.ResponseWriter, err error) {
	var (
		vErr   *domain.ValidationError
		pErr   *domain.PurchaseError
		nErr   *domain.NoInventoryError
		extErr *domain.ExternalCallError
	)

	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
		resp.Field = vErr.Field
	case errors.As(err, &pErr):
		status = http.StatusConflict
	case errors.As(err, &nErr):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrActionInFlight):
		status = http.StatusTooManyRequests
	case errors.Is(err, engine.ErrModeMismatch):
		status = http.StatusConflict
	case errors.As(err, &extErr):
		status = http.StatusBadGateway
	case errors.Is(err, engine.ErrMarketStopped):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		slog.Error("Request failed", slog.Any("error", err))
	}
	writeJSON(w, status, resp)
}
