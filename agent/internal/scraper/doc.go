// Package scraper reads the current cumulative total of a fundraising source.
//
// Two source types are supported: html (html.go) fetches a page with colly
// and parses the text of the first element matching a CSS selector; prometheus
// (prometheus.go) sums one metric family from a text exposition. Both return
// a Reading whose Err field carries any scrape failure.
//
// New(config.Source) wraps the scraper in a gobreaker circuit breaker so a
// source that keeps failing is skipped until its timeout elapses.
// Authentication (API key, bearer token, basic) and the User-Agent header are
// set by the shared authRoundTripper in base.go.
package scraper
