package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/waterworm/waterworm/pkg/types"
	"github.com/waterworm/waterworm/server/internal/render"
)

// chartNames lists the images served under /charts/{id}/.
var chartNames = []struct{ file, title string }{
	{"worm.png", "Worm Chart"},
	{"trend.png", "Original vs smoothed progress"},
	{"increments.png", "Individual donation amounts"},
	{"histogram.png", "Total donation amount by size range"},
}

// chart returns GET /charts/{id}/{chart}: one PNG chart of a live source.
func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	snap := e.Snapshot

	var buf bytes.Buffer
	var err error
	switch r.PathValue("chart") {
	case "worm.png":
		err = render.WormChart(&buf, snap.Name, snap.Goal, samplesOf(snap.Series))
	case "trend.png":
		err = render.TrendChart(&buf, snap.Name, snap.Series)
	case "increments.png":
		err = render.IncrementsChart(&buf, snap.Name, snap.Series, snap.Threshold)
	case "histogram.png":
		err = render.HistogramChart(&buf, snap.Name, snap.Histogram)
	default:
		jsonErr(w, http.StatusNotFound, "unknown chart")
		return
	}
	if errors.Is(err, render.ErrNoData) {
		jsonErr(w, http.StatusNotFound, "not enough data to chart")
		return
	}
	if err != nil {
		slog.Error("api: chart render failed", "source", snap.SourceID, "chart", r.PathValue("chart"), "err", err)
		jsonErr(w, http.StatusInternalServerError, "chart render failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// sourcePage returns GET /sources/{id}: the status page of one source.
func (h *Handler) sourcePage(w http.ResponseWriter, r *http.Request) {
	e, ok := h.entry(w, r)
	if !ok {
		return
	}
	snap := e.Snapshot

	page := render.SourcePage{
		Snapshot:    snap,
		UpdateEvery: h.opts.UpdateEvery,
		Back:        "/",
		Refresh:     h.opts.Refresh,
	}
	for _, c := range chartNames {
		page.Charts = append(page.Charts, render.Image{Title: c.title, Src: "/charts/" + snap.SourceID + "/" + c.file})
	}
	for _, in := range computeInsights(snap, h.now(), h.opts.StaleAfter) {
		page.Notes = append(page.Notes, render.Note{Level: in.Level, Title: in.Title, Detail: in.Detail})
	}
	h.html(w, func(buf *bytes.Buffer) error { return render.Source(buf, page) })
}

// indexPage returns GET /: the overview of all live sources.
func (h *Handler) indexPage(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	entries := h.store.List()
	page := render.IndexPage{GeneratedAt: h.now(), Refresh: h.opts.Refresh}
	for _, e := range entries {
		page.Sources = append(page.Sources, e.Snapshot)
	}
	h.html(w, func(buf *bytes.Buffer) error { return render.Index(buf, page) })
}

func (h *Handler) html(w http.ResponseWriter, exec func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := exec(&buf); err != nil {
		slog.Error("api: page render failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "page render failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// samplesOf recovers the logged samples from the chart rows.
func samplesOf(series []types.SeriesPoint) []types.Sample {
	out := make([]types.Sample, len(series))
	for i, p := range series {
		out[i] = types.Sample{Timestamp: p.Timestamp, Amount: p.Amount}
	}
	return out
}
