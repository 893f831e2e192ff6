package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waterworm/waterworm/server/internal/alerts"
	"github.com/waterworm/waterworm/server/internal/api"
	"github.com/waterworm/waterworm/server/internal/auth"
	"github.com/waterworm/waterworm/server/internal/config"
	"github.com/waterworm/waterworm/server/internal/receiver"
	"github.com/waterworm/waterworm/server/internal/store"
	"github.com/waterworm/waterworm/server/internal/ws"
)

const (
	broadcastInterval = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	updateEvery := flag.String("update-every", "10 minutes", "scrape cadence shown on the status page")
	refresh := flag.Int("refresh", 300, "status page auto-refresh in seconds (0 disables)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("waterworm-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"snapshot_ttl", cfg.Server.Snapshot.TTL,
		"resync", cfg.Server.Receiver.Resync,
		"sources", len(cfg.Server.Sources),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Snapshot store with background TTL eviction.
	st := store.New(cfg.Server.Snapshot.TTL)
	go st.Run(ctx)

	// Alerts engine; evaluates rules on every fresh snapshot.
	alertEngine := alerts.New(cfg.Server.Alerts)

	// Log watcher; analyzes each source on start, on change and on resync.
	rcv := receiver.New(cfg.Server.Sources, st, alertEngine, cfg.Server.Receiver.Resync)
	go func() {
		if err := rcv.Run(ctx); err != nil {
			slog.Error("receiver stopped", "err", err)
			cancel()
		}
	}()

	handler := api.New(st, api.Options{
		Alerts:      alertEngine,
		StaleAfter:  cfg.Server.Receiver.StaleAfter,
		UpdateEvery: *updateEvery,
		Refresh:     *refresh,
	})

	// WebSocket hub; broadcasts the snapshot to clients every 5 seconds.
	hub := ws.New(handler, broadcastInterval)
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws/stream", hub)
	mux.Handle("/", handler)

	requireKey := auth.APIKeyMiddleware(
		cfg.Server.Auth.Mode,
		cfg.Server.Auth.EffectiveHeader(),
		cfg.Server.Auth.Key(),
		"/api/v1/health",
	)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           requireKey(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("waterworm-server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "err", err)
	}
	alertEngine.Wait()
}
