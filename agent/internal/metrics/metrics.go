package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/waterworm/waterworm/agent/internal/compute"
)

// Scrape outcomes used as the "result" label.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultZero  = "zero"
)

// Metrics holds the agent's Prometheus collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	amount        *prometheus.GaugeVec
	lastIncrement *prometheus.GaugeVec
	scrapes       *prometheus.CounterVec
	lastSuccess   *prometheus.GaugeVec
	pending       *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		amount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "waterworm_amount",
			Help: "Latest cumulative total scraped from the source.",
		}, []string{"source"}),
		lastIncrement: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "waterworm_last_increment",
			Help: "Change in total since the previous successful scrape.",
		}, []string{"source"}),
		scrapes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waterworm_scrapes_total",
			Help: "Scrapes by outcome.",
		}, []string{"source", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "waterworm_last_success_timestamp_seconds",
			Help: "Unix time of the last successful scrape.",
		}, []string{"source"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "waterworm_sink_pending",
			Help: "Readings buffered for delivery to a sink.",
		}, []string{"sink"}),
	}
	m.reg.MustRegister(m.amount, m.lastIncrement, m.scrapes, m.lastSuccess, m.pending)
	return m
}

// Registry exposes the registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe records the outcome of one scrape.
func (m *Metrics) Observe(res *compute.Result) {
	switch {
	case res.ErrorMessage == "":
		m.scrapes.WithLabelValues(res.SourceID, ResultOK).Inc()
		m.amount.WithLabelValues(res.SourceID).Set(res.Amount)
		m.lastIncrement.WithLabelValues(res.SourceID).Set(res.Increment)
		m.lastSuccess.WithLabelValues(res.SourceID).Set(float64(res.Timestamp.Unix()))
	case res.ErrorMessage == compute.MsgZeroTotal:
		m.scrapes.WithLabelValues(res.SourceID, ResultZero).Inc()
	default:
		m.scrapes.WithLabelValues(res.SourceID, ResultError).Inc()
	}
}

// SetPending reports a sink's buffer depth.
func (m *Metrics) SetPending(sink string, n int) {
	m.pending.WithLabelValues(sink).Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve runs the /metrics endpoint on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics: listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
