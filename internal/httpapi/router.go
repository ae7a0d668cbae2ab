package httpapi

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"nft_market/internal/domain"
	"nft_market/internal/engine"
	"nft_market/internal/execution"
	"nft_market/internal/infra"
	"nft_market/internal/infra/media"
	"nft_market/internal/rotation"
	"nft_market/internal/view"
)

// Market is the engine surface the handlers need.
type Market interface {
	Snapshot() engine.State
	SetMode(ctx context.Context, mode domain.Mode) error
	Refetch(ctx context.Context) error
	Rotate(ctx context.Context, in rotation.Input) error
}

// Actions is the orchestrator plus its pending-transaction controls.
type Actions interface {
	execution.Orchestrator
	Pending() []domain.PendingTx
	Dismiss(id uuid.UUID) bool
}

// Wallet is the connected account. Set("") disconnects it.
type Wallet interface {
	domain.AccountProvider
	Set(address string)
}

// LedgerStatus reports the gateway connection.
type LedgerStatus interface {
	Connected() bool
	State() infra.BreakerState
}

// History lists journaled transactions.
type History interface {
	ListRecords(limit int) ([]domain.TxRecord, error)
}

// ModeStore remembers the last selected mode.
type ModeStore interface {
	SaveMode(mode domain.Mode) error
}

// Deps wires a Server. Ledger, History, Modes and MediaDir are optional.
type Deps struct {
	Market   Market
	Actions  Actions
	Account  Wallet
	Ledger   LedgerStatus
	Renderer view.Renderer
	Metrics  *infra.Metrics
	History  History
	Modes    ModeStore
	MediaDir string
}

// Server exposes the marketplace over HTTP.
type Server struct {
	Deps
}

func NewServer(deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = infra.GlobalMetrics
	}
	return &Server{Deps: deps}
}

// NewRouter registers every route.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", healthHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/market", s.getMarket).Methods("GET")
	api.HandleFunc("/mode", s.putMode).Methods("PUT")
	api.HandleFunc("/account", s.putAccount).Methods("PUT")
	api.HandleFunc("/ledger", s.getLedger).Methods("GET")
	api.HandleFunc("/refresh", s.postRefresh).Methods("POST")
	api.HandleFunc("/deposit", s.postDeposit).Methods("POST")
	api.HandleFunc("/buy", s.postBuy).Methods("POST")
	api.HandleFunc("/random", s.postRandom).Methods("POST")
	api.HandleFunc("/rotation/{action:next|prev|select|hover|wheel}", s.postRotation).Methods("POST")
	api.HandleFunc("/pending", s.getPending).Methods("GET")
	api.HandleFunc("/pending/{id}", s.deletePending).Methods("DELETE")
	api.HandleFunc("/transactions", s.getTransactions).Methods("GET")
	api.HandleFunc("/metrics", s.getMetrics).Methods("GET")

	if s.MediaDir != "" {
		fs := http.StripPrefix(media.RoutePrefix, http.FileServer(http.Dir(s.MediaDir)))
		r.PathPrefix(media.RoutePrefix).Handler(fs).Methods("GET")
	}

	return r
}

// Handler wraps the router with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	router := s.NewRouter()
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(router)
	return handlers.LoggingHandler(os.Stdout, recovered)
}
