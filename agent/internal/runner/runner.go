package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waterworm/waterworm/agent/internal/compute"
	"github.com/waterworm/waterworm/agent/internal/config"
	"github.com/waterworm/waterworm/agent/internal/metrics"
	"github.com/waterworm/waterworm/agent/internal/scraper"
	"github.com/waterworm/waterworm/agent/internal/shipper"
	"github.com/waterworm/waterworm/pkg/progresslog"
)

// pipeline is one configured source and its scraper.
type pipeline struct {
	src config.Source
	s   scraper.Scraper
}

// Runner executes scrape cycles: scrape every source, append good readings
// to their progress logs, derive live results, record metrics and hand the
// results to the shippers.
type Runner struct {
	mu        sync.Mutex
	pipelines []pipeline
	interval  time.Duration
	reload    chan time.Duration

	engine   *compute.Engine
	metrics  *metrics.Metrics // may be nil
	shippers []*shipper.Shipper

	now       func() time.Time
	newScrape func(config.Source) (scraper.Scraper, error)
	appendLog func(path string, ts time.Time, amount decimal.Decimal) error
}

// New builds a Runner for cfg. Sources whose scraper cannot be built are
// skipped with an error log.
func New(cfg config.AgentConfig, m *metrics.Metrics, shippers []*shipper.Shipper) *Runner {
	return newRunner(cfg, m, shippers, scraper.New)
}

func newRunner(cfg config.AgentConfig, m *metrics.Metrics, shippers []*shipper.Shipper, factory func(config.Source) (scraper.Scraper, error)) *Runner {
	r := &Runner{
		engine:    compute.NewEngine(),
		metrics:   m,
		shippers:  shippers,
		reload:    make(chan time.Duration, 1),
		now:       func() time.Time { return time.Now().UTC() },
		newScrape: factory,
		appendLog: progresslog.Append,
	}
	r.apply(cfg)
	return r
}

// Reload swaps in the sources of cfg and resets the ticker to its interval.
// Live state is kept for sources that remain configured.
func (r *Runner) Reload(cfg config.AgentConfig) {
	r.apply(cfg)
	select {
	case r.reload <- cfg.ScrapeInterval:
	default:
	}
}

func (r *Runner) apply(cfg config.AgentConfig) {
	var pipelines []pipeline
	keep := make(map[string]bool, len(cfg.Sources))
	for _, src := range cfg.Sources {
		s, err := r.newScrape(src)
		if err != nil {
			slog.Error("runner: skipping source, could not build scraper", "source", src.ID, "err", err)
			continue
		}
		pipelines = append(pipelines, pipeline{src: src, s: s})
		keep[src.ID] = true
		r.seed(src)
		slog.Info("runner: registered source", "id", src.ID, "type", src.Type, "endpoint", src.Endpoint, "log", src.LogPath)
	}
	r.engine.Forget(keep)

	r.mu.Lock()
	r.pipelines = pipelines
	r.interval = cfg.ScrapeInterval
	r.mu.Unlock()

	if len(pipelines) == 0 {
		slog.Warn("runner: no sources configured, agent will idle")
	}
}

// seed primes the engine from the source's log so the first live reading
// after a restart has an increment and a large-increment history.
func (r *Runner) seed(src config.Source) {
	samples, err := progresslog.Read(src.LogPath)
	if err != nil {
		slog.Debug("runner: no usable log to seed from", "source", src.ID, "err", err)
		return
	}
	r.engine.Seed(src.ID, samples)
}

// RunOnce performs one scrape cycle and returns the results in source order.
func (r *Runner) RunOnce(ctx context.Context) []*compute.Result {
	r.mu.Lock()
	pipelines := r.pipelines
	r.mu.Unlock()

	out := make([]*compute.Result, 0, len(pipelines))
	for _, p := range pipelines {
		if ctx.Err() != nil {
			break
		}
		reading, err := p.s.Scrape(ctx)
		if err != nil {
			slog.Warn("runner: scrape error", "source", p.src.ID, "err", err)
			continue
		}
		now := r.now()

		if reading.OK() {
			if err := r.appendLog(p.src.LogPath, now, reading.Amount); err != nil {
				slog.Error("runner: append to progress log failed", "source", p.src.ID, "path", p.src.LogPath, "err", err)
			} else {
				slog.Info("runner: logged reading", "source", p.src.ID, "amount", reading.Amount.StringFixed(2), "at", now)
			}
		}

		res := r.engine.Process(reading, now)
		if r.metrics != nil {
			r.metrics.Observe(res)
		}
		if res.ErrorMessage == "" {
			for _, s := range r.shippers {
				s.Ship(res)
			}
			if res.Large {
				slog.Info("runner: large increment", "source", res.SourceID, "increment", res.Increment, "threshold", res.Threshold)
			}
		}
		out = append(out, res)
	}

	if r.metrics != nil {
		for _, s := range r.shippers {
			r.metrics.SetPending(s.Name(), s.Pending())
		}
	}
	return out
}

// Run scrapes immediately and then every interval until ctx is cancelled.
// A Reload resets the ticker.
func (r *Runner) Run(ctx context.Context) {
	r.mu.Lock()
	interval := r.interval
	r.mu.Unlock()

	r.RunOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-r.reload:
			if d > 0 {
				ticker.Reset(d)
			}
			r.RunOnce(ctx)
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}
