package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"time"

	"github.com/waterworm/waterworm/pkg/format"
	"github.com/waterworm/waterworm/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"money": format.Money,
	"whole": format.MoneyWhole,
	"ts":    format.Timestamp,
	"date":  func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"pct":   func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"days":  func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"host":  host,
}

var (
	sourceTmpl = template.Must(template.New("source.html").Funcs(funcs).ParseFS(templateFS, "templates/source.html", "templates/style.html"))
	indexTmpl  = template.Must(template.New("index.html").Funcs(funcs).ParseFS(templateFS, "templates/index.html", "templates/style.html"))
)

// DefaultUpdateEvery describes the agent's default scrape cadence on pages.
const DefaultUpdateEvery = "10 minutes"

// Image is one chart embedded in a page.
type Image struct {
	Title string
	Src   string
}

// Note is one insight shown under the charts.
type Note struct {
	Level  string
	Title  string
	Detail string
}

// SourcePage is the status page of one source.
type SourcePage struct {
	Snapshot    *types.Snapshot
	Charts      []Image
	Notes       []Note
	UpdateEvery string
	Back        string // link to the index, empty for standalone pages
	Refresh     int    // meta refresh in seconds, 0 for none
}

// IndexPage lists every tracked source.
type IndexPage struct {
	Sources     []*types.Snapshot
	GeneratedAt time.Time
	Refresh     int
}

// Source writes the status page of one source.
func Source(w io.Writer, p SourcePage) error {
	if p.Snapshot == nil {
		return ErrNoData
	}
	if p.UpdateEvery == "" {
		p.UpdateEvery = DefaultUpdateEvery
	}
	if err := sourceTmpl.Execute(w, p); err != nil {
		return fmt.Errorf("render: source page: %w", err)
	}
	return nil
}

// Index writes the overview page.
func Index(w io.Writer, p IndexPage) error {
	if err := indexTmpl.Execute(w, p); err != nil {
		return fmt.Errorf("render: index page: %w", err)
	}
	return nil
}

// host returns the host part of a URL for link text, or the URL itself.
func host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
