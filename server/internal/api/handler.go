package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/waterworm/waterworm/pkg/analysis"
	"github.com/waterworm/waterworm/pkg/types"
	"github.com/waterworm/waterworm/server/internal/alerts"
	"github.com/waterworm/waterworm/server/internal/store"
)

// Options tunes the handler. The zero value is usable.
type Options struct {
	// Alerts backs /api/v1/alerts; nil serves an empty list.
	Alerts *alerts.Engine

	// StaleAfter is the newest-sample age reported as a stale log.
	StaleAfter time.Duration

	// UpdateEvery and Refresh are shown on and applied to the HTML pages.
	UpdateEvery string
	Refresh     int
}

// Handler is the HTTP handler for the JSON API, the chart images and the
// status pages. It reads snapshots from the store.
type Handler struct {
	store *store.Store
	opts  Options
	mux   *http.ServeMux
	now   func() time.Time
}

// New creates a Handler wired to the given snapshot store and registers all routes.
func New(st *store.Store, opts Options) *Handler {
	h := &Handler{store: st, opts: opts, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/progress", h.listProgress)
	h.mux.HandleFunc("/api/v1/progress/{id}", h.getProgress)
	h.mux.HandleFunc("/api/v1/progress/{id}/large", h.large)
	h.mux.HandleFunc("/api/v1/progress/{id}/histogram", h.histogram)
	h.mux.HandleFunc("/api/v1/progress/{id}/series", h.series)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	h.mux.HandleFunc("/charts/{id}/{chart}", h.chart)
	h.mux.HandleFunc("/sources/{id}", h.sourcePage)
	h.mux.HandleFunc("/{$}", h.indexPage)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: source counts per pace state.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}

	entries := h.store.List()
	resp := HealthResponse{SourceCount: len(entries), AlertCount: len(h.activeAlerts())}
	if len(entries) == 0 {
		resp.State = "unknown"
		jsonResp(w, http.StatusOK, resp)
		return
	}

	now := h.now()
	for _, e := range entries {
		snap := e.Snapshot
		switch snap.State {
		case analysis.StateAhead:
			resp.AheadCount++
		case analysis.StateOnTrack:
			resp.OnTrackCount++
		case analysis.StateBehind:
			resp.BehindCount++
		default:
			resp.UnknownCount++
		}
		if snap.Insufficient {
			resp.InsufficientCount++
		}
		if h.opts.StaleAfter > 0 && !snap.LastSample.IsZero() && now.Sub(snap.LastSample) > h.opts.StaleAfter {
			resp.StaleCount++
		}
	}

	switch {
	case resp.StaleCount > 0:
		resp.State = "stale"
	case resp.BehindCount > 0:
		resp.State = "behind"
	default:
		resp.State = "ok"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listProgress returns GET /api/v1/progress: all live sources.
func (h *Handler) listProgress(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, h.allProgress())
}

// getProgress returns GET /api/v1/progress/{id}: a single live source.
func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, h.toProgressResponse(e))
}

// large returns GET /api/v1/progress/{id}/large: the large donations.
func (h *Handler) large(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	snap := e.Snapshot
	resp := LargeResponse{
		SourceID:  snap.SourceID,
		Threshold: snap.Threshold,
		Count:     len(snap.LargeEvents),
		Total:     snap.LargeTotal,
		Events:    snap.LargeEvents,
	}
	if resp.Events == nil {
		resp.Events = []types.LargeEvent{}
	}
	jsonResp(w, http.StatusOK, resp)
}

// histogram returns GET /api/v1/progress/{id}/histogram: totals per size bin.
func (h *Handler) histogram(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	snap := e.Snapshot
	resp := HistogramResponse{
		SourceID: snap.SourceID,
		Total:    analysis.HistogramTotal(snap.Histogram),
		Bins:     make([]BinResponse, 0, len(snap.Histogram)),
	}
	for _, b := range snap.Histogram {
		br := BinResponse{Label: b.Label, Lower: b.Lower, Count: b.Count, Total: b.Total}
		if !math.IsInf(b.Upper, 1) {
			upper := b.Upper
			br.Upper = &upper
		}
		resp.Bins = append(resp.Bins, br)
	}
	jsonResp(w, http.StatusOK, resp)
}

// series returns GET /api/v1/progress/{id}/series: the chart rows.
func (h *Handler) series(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	out := e.Snapshot.Series
	if out == nil {
		out = []types.SeriesPoint{}
	}
	jsonResp(w, http.StatusOK, out)
}

// alerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, h.activeAlerts())
}

// snapshot returns GET /api/v1/snapshot: every live source plus alerts.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	jsonResp(w, http.StatusOK, SnapshotResponse{
		Sources:     h.allProgress(),
		Alerts:      h.activeAlerts(),
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	})
}

// Snapshot returns the same payload as GET /api/v1/snapshot, for the
// WebSocket hub.
func (h *Handler) Snapshot() SnapshotResponse {
	return SnapshotResponse{
		Sources:     h.allProgress(),
		Alerts:      h.activeAlerts(),
		GeneratedAt: h.now().UTC().Format(time.RFC3339),
	}
}

// --- helpers ----------------------------------------------------------------

// entry resolves the {id} path value to a live store entry, answering 405 or
// 404 itself when that fails.
func (h *Handler) entry(w http.ResponseWriter, r *http.Request) (*store.Entry, bool) {
	if !allowGet(w, r) {
		return nil, false
	}
	e, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "source not found")
		return nil, false
	}
	return e, true
}

func (h *Handler) allProgress() []ProgressResponse {
	entries := h.store.List()
	out := make([]ProgressResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, h.toProgressResponse(e))
	}
	return out
}

func (h *Handler) activeAlerts() []*alerts.Alert {
	if h.opts.Alerts == nil {
		return []*alerts.Alert{}
	}
	return h.opts.Alerts.Active()
}

// toProgressResponse maps a store.Entry to its JSON representation.
func (h *Handler) toProgressResponse(e *store.Entry) ProgressResponse {
	insights := computeInsights(e.Snapshot, h.now(), h.opts.StaleAfter)
	if insights == nil {
		insights = []Insight{}
	}
	return ProgressResponse{
		Snapshot:   e.Snapshot,
		LargeCount: len(e.Snapshot.LargeEvents),
		Insights:   insights,
		LastSeen:   e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
