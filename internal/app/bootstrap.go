package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"nft_market/internal/classify"
	"nft_market/internal/domain"
	"nft_market/internal/engine"
	"nft_market/internal/event"
	"nft_market/internal/execution"
	"nft_market/internal/httpapi"
	"nft_market/internal/infra"
	"nft_market/internal/infra/ledger"
	"nft_market/internal/infra/media"
	"nft_market/internal/infra/storage"
	"nft_market/internal/view"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Storage    *storage.Storage
	Media      *media.Cache
	Ledger     *ledger.Client
	Account    *infra.StaticAccount
	Market     *engine.Market
	Dispatcher *execution.Dispatcher
	Server     *httpapi.Server

	mediaCtx    context.Context
	mediaCancel context.CancelFunc
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bootstrap{mediaCtx: ctx, mediaCancel: cancel}
}

// Initialize wires every component. Nothing is started yet.
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping NFT Market...")

	// 1. Load Config
	path := infra.ResolveConfigPath()
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		if !errors.Is(err, domain.ErrConfigNotFound) {
			return err
		}
		slog.Warn("Config file not found, using defaults", slog.String("path", path))
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized")

	mode := b.restoreMode()

	// 4. Media thumbnails
	if cfg.Media.Enabled {
		cache, err := media.NewCache(cfg.Media.CacheDir, cfg.Media.Size)
		if err != nil {
			return err
		}
		b.Media = cache
		slog.Info("✅ Media cache ready", slog.String("dir", cache.Dir()))
	}

	// 5. Ledger gateway (optional)
	var (
		reader domain.LedgerReader
		writer domain.LedgerWriter
	)
	if cfg.Ledger.WSURL != "" {
		b.Ledger = ledger.NewClient(ledger.Config{
			URL:            cfg.Ledger.WSURL,
			RequestTimeout: cfg.RequestTimeout(),
			Backoff: infra.Backoff{
				Base: time.Duration(cfg.Ledger.ReconnectBaseMS) * time.Millisecond,
				Max:  time.Duration(cfg.Ledger.ReconnectMaxMS) * time.Millisecond,
			},
			Breaker: infra.CircuitBreakerConfig{
				Name:             "ledger",
				FailureThreshold: cfg.Ledger.Breaker.Threshold,
				SuccessThreshold: 2,
				Timeout:          time.Duration(cfg.Ledger.Breaker.CooldownMS) * time.Millisecond,
			},
		}, infra.GlobalMetrics)
		reader, writer = b.Ledger, b.Ledger
	}

	// 6. Market loop and execution
	policy, err := classify.PolicyFromConfig(cfg.Market.TierPolicy, cfg.Market.TopK, cfg.Market.Terms)
	if err != nil {
		return &domain.ConfigError{Field: "market.tier_policy", Err: err}
	}

	event.Warmup()
	b.Market = engine.NewMarket(engine.Config{
		Mode:             mode,
		Policy:           policy,
		RotationInterval: cfg.RotationInterval(),
		PendingRetry:     cfg.PendingRetry(),
	}, reader, b.syncMedia)

	b.Account = infra.NewStaticAccount(cfg.Market.Account)
	b.Dispatcher = execution.NewDispatcher(b.Market, writer, b.Account, execution.Options{
		Journal: b.Storage,
		OnDone: func(tx domain.PendingTx, err error) {
			if err != nil {
				slog.Warn("Transaction failed", slog.String("action", string(tx.Action)), slog.Any("error", err))
				return
			}
			slog.Info("Transaction confirmed", slog.String("action", string(tx.Action)), slog.String("target", tx.Target.String()))
		},
	})

	// 7. HTTP surface
	deps := httpapi.Deps{
		Market:  b.Market,
		Actions: b.Dispatcher,
		Account: b.Account,
		History: b.Storage,
		Modes:   b.Storage,
	}
	if b.Ledger != nil {
		deps.Ledger = b.Ledger
	}
	if b.Media != nil {
		deps.Renderer = view.Renderer{Media: b.Media}
		deps.MediaDir = b.Media.Dir()
	}
	b.Server = httpapi.NewServer(deps)

	slog.Info("✅ Market wired", slog.String("mode", mode.String()), slog.String("policy", policy.Name()))
	return nil
}

// restoreMode prefers the last persisted mode over the config file.
func (b *Bootstrap) restoreMode() domain.Mode {
	mode := b.Config.Mode()
	saved, ok, err := b.Storage.LoadMode()
	if err != nil {
		slog.Warn("Failed to load last mode", slog.Any("error", err))
		return mode
	}
	if !ok {
		return mode
	}
	if saved == domain.ModeLive && b.Config.Ledger.WSURL == "" {
		slog.Warn("Last mode was live but no ledger is configured, staying in simulation")
		return domain.ModeSimulation
	}
	return saved
}

// syncMedia runs on the market loop after every publish. Prefetch only claims and spawns.
func (b *Bootstrap) syncMedia(st engine.State) {
	if b.Media == nil {
		return
	}
	refs := make([]string, 0, len(st.Listings))
	for i := range st.Listings {
		refs = append(refs, st.Listings[i].Media())
	}
	b.Media.Prefetch(b.mediaCtx, refs)
}

// Run starts every component and blocks until ctx is done or the HTTP server fails.
// Callers release resources with Close.
func (b *Bootstrap) Run(ctx context.Context) error {
	if b.Ledger != nil {
		b.Ledger.OnListingsChanged(func() {
			if err := b.Market.Refetch(ctx); err != nil {
				slog.Debug("Refetch after notification dropped", slog.Any("error", err))
			}
		})
		b.Ledger.Start(ctx)
		slog.InfoContext(ctx, "✅ Ledger client started", slog.String("url", b.Config.Ledger.WSURL))
	}

	marketDone := make(chan struct{})
	go func() {
		defer close(marketDone)
		b.Market.Run(ctx)
	}()
	slog.InfoContext(ctx, "✅ Market loop started")

	srv := &http.Server{
		Addr:              b.Config.HTTP.Addr,
		Handler:           b.Server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "🌐 HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-srvErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", slog.Any("error", err))
	}

	if runErr != nil {
		return runErr
	}
	<-marketDone
	return nil
}

// Close releases background resources.
func (b *Bootstrap) Close() {
	b.mediaCancel()
	if b.Ledger != nil {
		b.Ledger.Stop()
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Error("Failed to close storage", slog.Any("error", err))
		}
	}
}
