package scraper

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/waterworm/waterworm/agent/internal/config"
)

const defaultScrapeTimeout = 30 * time.Second

// Reading is the normalized output of one scrape of a single source.
type Reading struct {
	SourceID   string
	SourceType string
	ScrapedAt  time.Time

	// Amount is the cumulative total shown by the source.
	Amount decimal.Decimal

	// Raw is the text the amount was parsed from, kept for logging.
	Raw string

	// Err is non-nil if the scrape itself failed (connectivity, auth, parse,
	// open breaker). Amount is zero in that case.
	Err error
}

// OK reports whether the reading should be logged: the scrape succeeded and
// the amount is strictly positive. Pages show 0 before their counter
// animation runs, so a zero total is treated as "not yet rendered".
func (r *Reading) OK() bool {
	return r != nil && r.Err == nil && r.Amount.IsPositive()
}

// Scraper is implemented by every source type.
type Scraper interface {
	Scrape(ctx context.Context) (*Reading, error)
}

// ErrNoAmount is carried in Reading.Err when the page or exposition has no
// value for the configured selector or metric.
var ErrNoAmount = errors.New("scraper: amount not found")

// ErrAmbiguousAmount is returned by ParseAmount when the text holds more
// than one number.
var ErrAmbiguousAmount = errors.New("scraper: ambiguous amount")

// New returns the Scraper for src, wrapped in a circuit breaker.
// It builds the HTTP transport once and reuses it across scrape calls.
func New(src config.Source) (Scraper, error) {
	client := buildHTTPClient(src)

	var inner Scraper
	switch src.Type {
	case config.TypeHTML:
		inner = &htmlScraper{src: src, client: client}
	case config.TypePrometheus:
		inner = &promScraper{src: src, client: client}
	default:
		return nil, fmt.Errorf("scraper: unsupported type %q", src.Type)
	}
	return newGuarded(src, inner), nil
}

// authRoundTripper injects authentication and identification headers into
// every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	src  config.Source
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.src.UserAgent != "" {
		req.Header.Set("User-Agent", t.src.UserAgent)
	}
	switch t.src.Auth.Mode {
	case "apikey":
		req.Header.Set(t.src.Auth.Header, t.src.Auth.Key())
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+t.src.Auth.Token())
	case "basic":
		req.SetBasicAuth(t.src.Auth.Username, t.src.Auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) *http.Client {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg, Proxy: http.ProxyFromEnvironment},
			src:  src,
		},
		Timeout: defaultScrapeTimeout,
	}
}

// ParseAmount extracts a decimal total from display text such as
// "$1,234,567.89" or "R 12 345". Currency symbols, thousands separators
// and whitespace are dropped. Text holding more than one number, such as
// "12,345 raised of 40,000,000", is rejected with ErrAmbiguousAmount.
func ParseAmount(text string) (decimal.Decimal, error) {
	runs := numericRuns(text)
	switch len(runs) {
	case 0:
		return decimal.Zero, fmt.Errorf("%w: no digits in %q", ErrNoAmount, text)
	case 1:
	default:
		return decimal.Zero, fmt.Errorf("%w: %d numbers in %q", ErrAmbiguousAmount, len(runs), text)
	}

	var b strings.Builder
	for _, r := range runs[0] {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", text, err)
	}
	return d, nil
}

// numericRuns splits text into maximal runs of digits and number
// punctuation (separators, decimal point, sign) and keeps those holding
// at least one digit.
func numericRuns(text string) []string {
	var (
		runs []string
		cur  strings.Builder
	)
	flush := func() {
		if strings.ContainsAny(cur.String(), "0123456789") {
			runs = append(runs, cur.String())
		}
		cur.Reset()
	}
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9', r == ',', r == '.', r == '-', unicode.IsSpace(r):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return runs
}

// newReading initialises a Reading stamped with the current time.
func newReading(sourceID, sourceType string) *Reading {
	return &Reading{
		SourceID:   sourceID,
		SourceType: sourceType,
		ScrapedAt:  time.Now().UTC(),
	}
}

// guarded fails fast while the source's breaker is open.
type guarded struct {
	src   config.Source
	inner Scraper
	cb    *gobreaker.CircuitBreaker
}

func newGuarded(src config.Source, inner Scraper) *guarded {
	return &guarded{
		src:   src,
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        src.ID,
			MaxRequests: 1,
			Timeout:     src.Breaker.Timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= src.Breaker.MaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("scraper: breaker state change", "source", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Scrape runs the inner scraper through the breaker. A failed reading counts
// as a breaker failure; while open, the reading carries gobreaker.ErrOpenState.
func (g *guarded) Scrape(ctx context.Context) (*Reading, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		r, err := g.inner.Scrape(ctx)
		if err != nil {
			return nil, err
		}
		if r.Err != nil {
			return r, r.Err
		}
		return r, nil
	})
	if r, ok := out.(*Reading); ok && r != nil {
		return r, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		res := newReading(g.src.ID, g.src.Type)
		res.Err = fmt.Errorf("scrape %q: %w", g.src.ID, err)
		return res, nil
	}
	return nil, err
}

// State exposes the breaker state for logging.
func (g *guarded) State() gobreaker.State { return g.cb.State() }
