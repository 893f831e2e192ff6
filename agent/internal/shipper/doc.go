// Package shipper delivers live readings to downstream sinks (Postgres,
// MongoDB, Redis) without ever blocking the scrape loop.
//
// One Shipper wraps one Sink. Shipper.Ship() is non-blocking: results are
// placed in an in-memory channel (default capacity 1000). When the buffer is
// full the oldest entry is evicted so the latest readings are preserved.
//
// Shipper.Run() connects the sink and drains the buffer, reconnecting with
// truncated exponential backoff (1s→60s, ±25% jitter) after connect or
// write errors. Errors wrapping ErrPermanent discard the record instead.
package shipper
