package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"nft_market/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.InfoContext(ctx, "✨ NFT Market operational. Press Ctrl+C to exit.",
		slog.String("mode", bootstrap.Market.Mode().String()),
		slog.String("addr", bootstrap.Config.HTTP.Addr))

	// 4. Run until signal
	if err := bootstrap.Run(ctx); err != nil {
		slog.Error("❌ Market stopped with error", slog.Any("error", err))
		stop()
		bootstrap.Close()
		os.Exit(1)
	}
}
