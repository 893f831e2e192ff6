// Package api implements the HTTP surface of waterworm-server.
//
// New(store, opts) returns a Handler that serves:
//
//	GET /api/v1/health                   state and per-pace-state source counts
//	GET /api/v1/progress                 all live sources ([]ProgressResponse)
//	GET /api/v1/progress/{id}            one source; 404 if unknown or stale
//	GET /api/v1/progress/{id}/large      large donations and their threshold
//	GET /api/v1/progress/{id}/histogram  totals per donation-size bin
//	GET /api/v1/progress/{id}/series     original, smoothed and increment rows
//	GET /api/v1/alerts                   firing and recently resolved alerts
//	GET /api/v1/snapshot                 all live sources, alerts and generated_at
//	GET /charts/{id}/{worm,trend,increments,histogram}.png
//	GET /  and  GET /sources/{id}        server-rendered status pages
//
// JSON endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. Each progress entry carries insights computed at
// request time (pace, large donations, glitches, stale log, insufficient data).
package api
