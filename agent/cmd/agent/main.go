package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/waterworm/waterworm/agent/internal/config"
	"github.com/waterworm/waterworm/agent/internal/metrics"
	"github.com/waterworm/waterworm/agent/internal/runner"
	"github.com/waterworm/waterworm/agent/internal/shipper"
	"github.com/waterworm/waterworm/agent/internal/sink"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single scrape cycle and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("waterworm-agent starting", "config", *configPath, "once", *once)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"sources", len(cfg.Agent.Sources),
		"scrape_interval", cfg.Agent.ScrapeInterval,
		"metrics_addr", cfg.Agent.MetricsAddr,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sinks, err := sink.Build(cfg.Agent.Sinks)
	if err != nil {
		slog.Error("failed to build sinks", "err", err)
		os.Exit(1)
	}
	shippers := make([]*shipper.Shipper, 0, len(sinks))
	for _, s := range sinks {
		shippers = append(shippers, shipper.New(s, cfg.Agent.BufferSize))
	}

	m := metrics.New()
	r := runner.New(cfg.Agent, m, shippers)

	if *once {
		runOnce(ctx, r, shippers)
		return
	}

	for _, s := range shippers {
		go s.Run(ctx)
	}

	if cfg.Agent.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Agent.MetricsAddr); err != nil {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
	}

	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			r.Reload(updated.Agent)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	r.Run(ctx)
	slog.Info("waterworm-agent shutting down")
}

// runOnce scrapes every source, then gives the sinks one chance to drain
// before exiting. This is the cron mode: `agent -once` every ten minutes.
func runOnce(ctx context.Context, r *runner.Runner, shippers []*shipper.Shipper) {
	results := r.RunOnce(ctx)
	failed := 0
	for _, res := range results {
		if res.ErrorMessage != "" {
			failed++
		}
	}
	if len(shippers) > 0 {
		flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()
		for _, s := range shippers {
			go s.Run(flushCtx)
		}
		waitDrained(flushCtx, shippers)
	}
	slog.Info("waterworm-agent single cycle done", "sources", len(results), "failed", failed)
	if failed > 0 && failed == len(results) {
		os.Exit(2)
	}
}
