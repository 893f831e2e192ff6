// Package metrics exposes the agent's own Prometheus metrics: the latest
// total and increment per source, scrape outcomes, the time of the last
// successful scrape, and sink buffer depth.
package metrics
