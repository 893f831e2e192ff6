package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gocolly/colly"

	"github.com/waterworm/waterworm/agent/internal/config"
)

type htmlScraper struct {
	src    config.Source
	client *http.Client
}

// Scrape fetches the page and reads the text of the first element matching
// the configured selector. Only server-rendered markup is seen; totals that
// are filled in by client-side script are reported as ErrNoAmount.
func (s *htmlScraper) Scrape(ctx context.Context) (*Reading, error) {
	res := newReading(s.src.ID, config.TypeHTML)

	if err := ctx.Err(); err != nil {
		res.Err = fmt.Errorf("html scrape %q: %w", s.src.ID, err)
		return res, nil
	}

	// A fresh collector per scrape: colly remembers visited URLs.
	c := colly.NewCollector(colly.UserAgent(s.src.UserAgent))
	c.WithTransport(s.client.Transport)
	c.SetRequestTimeout(s.client.Timeout)

	var (
		found bool
		text  string
	)
	c.OnHTML(s.src.Selector, func(e *colly.HTMLElement) {
		if found {
			return
		}
		found = true
		text = strings.TrimSpace(e.Text)
	})

	if err := c.Visit(s.src.Endpoint); err != nil {
		res.Err = fmt.Errorf("html scrape %q: %w", s.src.ID, err)
		slog.Warn("scraper: html fetch failed", "source", s.src.ID, "err", err)
		return res, nil
	}
	if !found {
		res.Err = fmt.Errorf("html scrape %q: selector %q: %w", s.src.ID, s.src.Selector, ErrNoAmount)
		return res, nil
	}

	res.Raw = text
	amount, err := ParseAmount(text)
	if err != nil {
		res.Err = fmt.Errorf("html scrape %q: %w", s.src.ID, err)
		return res, nil
	}
	res.Amount = amount
	return res, nil
}
