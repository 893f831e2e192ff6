// Package sink implements shipper.Sink for the optional downstream stores:
// Postgres (sqlx + lib/pq), MongoDB and Redis. Every sink stores the same
// Record and is idempotent per (source_id, ts).
package sink
