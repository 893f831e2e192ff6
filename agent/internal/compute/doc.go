// Package compute tracks live readings per source.
//
// Engine.Process turns each scraper.Reading into a Result: the increment
// since the previous successful reading (negative values are kept), the
// rate per hour, uptime over the last 20 scrapes, a state (unknown, rising,
// flat, regressed), and whether the increment is large relative to the
// source's recent history. Engine.Process accepts an injectable time.Time so
// tests are deterministic.
package compute
