// Package store holds the latest analyzed snapshot of every tracked source
// in memory. It is thread-safe and evicts snapshots whose source has not
// been re-analyzed within the configured TTL.
package store
