// Package runner drives the agent's scrape cycle. Each cycle scrapes every
// configured source in order, appends readings that succeeded with a
// positive total to the source's CSV progress log, feeds the compute engine,
// updates metrics and ships the result to every sink.
//
// Run scrapes once immediately and then on a ticker; RunOnce performs a
// single cycle for cron-style use. Reload swaps sources after a config
// change and resets the ticker. Sinks are fixed for the process lifetime.
package runner
