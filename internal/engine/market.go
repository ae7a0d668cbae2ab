package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"nft_market/internal/classify"
	"nft_market/internal/domain"
	"nft_market/internal/event"
	"nft_market/internal/infra"
	"nft_market/internal/rotation"
	"nft_market/internal/source"
)

// ErrModeMismatch is returned when an optimistic mutation targets a mode that is no longer active.
var ErrModeMismatch = errors.New("market mode changed")

// ErrMarketStopped is returned by the external API once Run has returned.
var ErrMarketStopped = errors.New("market loop stopped")

// Config holds the market loop settings.
type Config struct {
	Mode             domain.Mode
	Policy           classify.Policy
	RotationInterval time.Duration
	PendingRetry     time.Duration // Re-read delay while the ledger reports no data yet
	InboxSize        int
}

// State is an immutable snapshot published after every event.
type State struct {
	Mode        domain.Mode       `json:"mode"`
	Generation  uint64            `json:"generation"`
	Loading     bool              `json:"loading"` // live read in flight
	Listings    domain.ListingSet `json:"listings"`
	Tiers       classify.Tiers    `json:"tiers"`
	Stats       classify.Stats    `json:"stats"`
	Policy      string            `json:"policy"`
	Featured    int               `json:"featured"`
	HasFeatured bool              `json:"has_featured"`
	Hovered     bool              `json:"hovered"`
	LastError   string            `json:"last_error,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// FeaturedListing returns the listing under the rotation cursor.
func (s *State) FeaturedListing() (domain.Listing, bool) {
	if !s.HasFeatured || s.Featured >= len(s.Tiers.Top) {
		return domain.Listing{}, false
	}
	return s.Tiers.Top[s.Featured], true
}

// Market is the single-threaded event processor that owns the canonical listing set.
type Market struct {
	inbox   chan event.Event
	done    chan struct{} // closed when Run returns
	reader  domain.LedgerReader
	policy  classify.Policy
	metrics *infra.Metrics

	// Loop-owned state. Only touched from Run.
	mode       domain.Mode
	generation uint64
	loading    bool
	listings   domain.ListingSet
	lastErr    error
	rotation   *rotation.Machine
	ticker     *rotation.Ticker
	retry      time.Duration
	runCtx     context.Context

	// Boundary: used to notify the presentation layer of state changes
	onStateUpdate func(State)

	mu       sync.RWMutex // Used only for external reads (e.g. UI)
	snapshot State
}

// NewMarket creates a new market instance. reader may be nil when live mode is never used.
func NewMarket(cfg Config, reader domain.LedgerReader, onUpdate func(State)) *Market {
	if cfg.Policy == nil {
		cfg.Policy = classify.RankPolicy{K: classify.DefaultTopK}
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	if cfg.PendingRetry <= 0 {
		cfg.PendingRetry = 2 * time.Second
	}

	m := &Market{
		inbox:         make(chan event.Event, cfg.InboxSize),
		done:          make(chan struct{}),
		reader:        reader,
		policy:        cfg.Policy,
		metrics:       infra.GlobalMetrics,
		mode:          cfg.Mode,
		rotation:      rotation.NewMachine(0),
		ticker:        rotation.NewTicker(cfg.RotationInterval),
		retry:         cfg.PendingRetry,
		onStateUpdate: onUpdate,
	}

	// Initial pipeline: simulation is available immediately, live waits for Run to issue the read.
	if m.mode == domain.ModeLive {
		m.loading = true
		m.listings = domain.ListingSet{}
	} else {
		m.listings = source.Seed()
	}
	m.recompute()
	return m
}

// WithMetrics swaps the metrics sink (tests).
func (m *Market) WithMetrics(metrics *infra.Metrics) *Market {
	m.metrics = metrics
	return m
}

// Run starts the main event loop. This MUST be run in a single goroutine.
// The rotation timer lives exactly as long as Run.
func (m *Market) Run(ctx context.Context) {
	slog.Info("Market loop started", slog.String("mode", m.mode.String()), slog.String("policy", m.policy.Name()))
	m.runCtx = ctx
	defer close(m.done)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			m.DumpState("panic_dump.json")
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	m.ticker.Start(ctx, func(tctx context.Context) {
		ev := event.AcquireRotationEvent()
		ev.Input = rotation.Tick()
		if err := m.post(tctx, ev); err != nil {
			event.ReleaseRotationEvent(ev)
		}
	})
	defer m.ticker.Stop()

	if m.mode == domain.ModeLive {
		m.issueRead()
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("Market loop stopping...")
			return
		case ev := <-m.inbox:
			start := time.Now()
			m.processEvent(ev)
			m.metrics.RecordEvent(time.Since(start).Nanoseconds())
		}
	}
}

func (m *Market) processEvent(ev event.Event) {
	switch e := ev.(type) {
	case *event.ModeChangedEvent:
		m.enterMode(e.Mode)
	case *event.RefetchEvent:
		m.refetch()
	case *event.QueryResolvedEvent:
		m.handleQuery(e)
	case *event.RotationEvent:
		m.rotation.Apply(e.Input)
		event.ReleaseRotationEvent(e)
		m.publish()
	case *event.MutateEvent:
		e.Reply <- m.handleMutate(e)
	default:
		slog.Warn("Unknown event type", slog.Any("type", ev.GetType()))
	}
}

// enterMode discards the previous set and recomputes the full pipeline.
func (m *Market) enterMode(mode domain.Mode) {
	slog.Info("Switching data source", slog.String("from", m.mode.String()), slog.String("to", mode.String()))

	m.mode = mode
	m.generation++
	m.lastErr = nil

	if mode == domain.ModeLive {
		m.listings = domain.ListingSet{}
		m.loading = true
		m.recompute()
		m.issueRead()
		return
	}

	m.loading = false
	m.listings, _ = source.Resolve(domain.ModeSimulation, source.QueryResult{})
	m.recompute()
}

// refetch reconciles with the ledger. The current set stays visible until the result lands.
// Simulation state is local and authoritative, so there is nothing to reconcile.
func (m *Market) refetch() {
	if m.mode != domain.ModeLive {
		return
	}
	m.generation++
	m.loading = true
	m.publish()
	m.issueRead()
}

func (m *Market) issueRead() {
	gen := m.generation
	ctx := m.runCtx
	m.metrics.RecordRefetch()

	reader := m.reader
	go func() {
		res := source.QueryResult{Err: domain.ErrLedgerUnavailable}
		if reader != nil {
			items, ready, err := reader.GetAllListedNFTs(ctx)
			res = source.QueryResult{Items: items, Err: err, Pending: err == nil && !ready}
		}
		_ = m.post(ctx, &event.QueryResolvedEvent{Generation: gen, Result: res})
	}()
}

func (m *Market) handleQuery(e *event.QueryResolvedEvent) {
	if m.mode != domain.ModeLive || e.Generation != m.generation {
		m.metrics.RecordStaleResult()
		slog.Debug("Dropping stale ledger result", slog.Uint64("gen", e.Generation), slog.Uint64("current", m.generation))
		return
	}

	set, err := source.Resolve(domain.ModeLive, e.Result)
	switch {
	case err != nil:
		m.metrics.RecordLedgerError()
		m.lastErr = err
		m.loading = false
		slog.Warn("Ledger read failed", slog.Any("error", err))
		// A failed refetch keeps the last authoritative set
	case e.Result.Pending:
		m.lastErr = nil
		m.scheduleRetry()
	default:
		m.lastErr = nil
		m.loading = false
		m.listings = set
	}
	m.recompute()
}

func (m *Market) scheduleRetry() {
	ctx := m.runCtx
	time.AfterFunc(m.retry, func() {
		_ = m.post(ctx, &event.RefetchEvent{})
	})
}

func (m *Market) handleMutate(e *event.MutateEvent) error {
	if e.Mode != m.mode {
		return ErrModeMismatch
	}

	working := m.listings.Clone()
	if err := e.Fn(&working); err != nil {
		return err
	}
	m.listings = working
	m.recompute()
	return nil
}

// recompute runs classify and rotation over the current set, then publishes.
func (m *Market) recompute() {
	tiers := classify.Classify(m.listings, m.policy)
	m.rotation.Resize(len(tiers.Top))
	m.publish()
}

func (m *Market) publish() {
	listings := m.listings.Clone()
	idx, ok := m.rotation.Current()

	st := State{
		Mode:        m.mode,
		Generation:  m.generation,
		Loading:     m.loading,
		Listings:    listings,
		Tiers:       classify.Classify(listings, m.policy),
		Stats:       classify.Summarize(listings),
		Policy:      m.policy.Name(),
		Featured:    idx,
		HasFeatured: ok,
		Hovered:     m.rotation.Hovered(),
		UpdatedAt:   time.Now(),
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}

	m.mu.Lock()
	m.snapshot = st
	m.mu.Unlock()

	if m.onStateUpdate != nil {
		m.onStateUpdate(st)
	}
}

func (m *Market) post(ctx context.Context, ev event.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-m.done:
		return ErrMarketStopped
	default:
	}
	select {
	case m.inbox <- ev:
		return nil
	case <-m.done:
		return ErrMarketStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ======================================================================================
// External API (any goroutine)
// ======================================================================================

// SetMode switches between simulation and live.
func (m *Market) SetMode(ctx context.Context, mode domain.Mode) error {
	return m.post(ctx, &event.ModeChangedEvent{Mode: mode})
}

// Refetch requests reconciliation with the ledger. Safe to call repeatedly.
func (m *Market) Refetch(ctx context.Context) error {
	return m.post(ctx, &event.RefetchEvent{})
}

// Rotate feeds a rotation input into the loop.
func (m *Market) Rotate(ctx context.Context, in rotation.Input) error {
	ev := event.AcquireRotationEvent()
	ev.Input = in
	if err := m.post(ctx, ev); err != nil {
		event.ReleaseRotationEvent(ev)
		return err
	}
	return nil
}

// Mutate applies fn to the canonical set on the loop and waits for the outcome.
func (m *Market) Mutate(ctx context.Context, mode domain.Mode, fn func(set *domain.ListingSet) error) error {
	ev := &event.MutateEvent{Mode: mode, Fn: fn, Reply: make(chan error, 1)}
	if err := m.post(ctx, ev); err != nil {
		return err
	}
	select {
	case err := <-ev.Reply:
		return err
	case <-m.done:
		return ErrMarketStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the latest published state (external read).
func (m *Market) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Mode returns the mode of the latest snapshot.
func (m *Market) Mode() domain.Mode {
	return m.Snapshot().Mode
}

// Listings returns a copy of the latest listing set.
func (m *Market) Listings() domain.ListingSet {
	return m.Snapshot().Listings.Clone()
}

// DumpState writes the latest snapshot to a file (for post-mortem).
func (m *Market) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	st := m.Snapshot()
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
