package api

import (
	"github.com/waterworm/waterworm/pkg/types"
	"github.com/waterworm/waterworm/server/internal/alerts"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State             string `json:"state"` // ok | behind | stale | unknown
	SourceCount       int    `json:"source_count"`
	AheadCount        int    `json:"ahead_count"`
	OnTrackCount      int    `json:"on_track_count"`
	BehindCount       int    `json:"behind_count"`
	UnknownCount      int    `json:"unknown_count"`
	InsufficientCount int    `json:"insufficient_count"`
	StaleCount        int    `json:"stale_count"`
	AlertCount        int    `json:"alert_count"`
}

// ProgressResponse is one source in GET /api/v1/progress or
// GET /api/v1/progress/{id}: the snapshot plus derived insights.
type ProgressResponse struct {
	*types.Snapshot
	LargeCount int       `json:"large_count"`
	Insights   []Insight `json:"insights"`
	LastSeen   string    `json:"last_seen"` // RFC3339, when the log was last analyzed
}

// LargeResponse is the payload for GET /api/v1/progress/{id}/large.
type LargeResponse struct {
	SourceID  string             `json:"source_id"`
	Threshold float64            `json:"threshold"`
	Count     int                `json:"count"`
	Total     float64            `json:"total"`
	Events    []types.LargeEvent `json:"events"`
}

// BinResponse is one histogram bucket. Upper is null for the unbounded bin.
type BinResponse struct {
	Label string   `json:"label"`
	Lower float64  `json:"lower"`
	Upper *float64 `json:"upper"`
	Count int      `json:"count"`
	Total float64  `json:"total"`
}

// HistogramResponse is the payload for GET /api/v1/progress/{id}/histogram.
type HistogramResponse struct {
	SourceID string        `json:"source_id"`
	Total    float64       `json:"total"`
	Bins     []BinResponse `json:"bins"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot.
type SnapshotResponse struct {
	Sources     []ProgressResponse `json:"sources"`
	Alerts      []*alerts.Alert    `json:"alerts"`
	GeneratedAt string             `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
