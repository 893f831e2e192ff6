// Package progresslog reads and appends the CSV progress log: one
// `timestamp,amount` row per successful scrape, header written when the
// file is created. The log is append-only; readers treat it as an
// immutable snapshot and fail on the first malformed row.
package progresslog
