package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/waterworm/waterworm/agent/internal/config"
)

// --- ParseAmount ---

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234567", "1234567"},
		{"$1,234,567.89", "1234567.89"},
		{"  R 12 345 ", "12345"},
		{"€0.50", "0.5"},
		{"30,000,000", "30000000"},
		{"12\u00a0345 raised", "12345"},
		{"Total: $40,000,000 USD", "40000000"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tc.in, err)
			}
			if got.String() != tc.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "loading...", "$", "1.2.3"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) expected error", in)
		}
	}
	if _, err := ParseAmount("n/a"); !errors.Is(err, ErrNoAmount) {
		t.Errorf("ParseAmount(n/a) error = %v, want ErrNoAmount", err)
	}
}

func TestParseAmount_MoreThanOneNumber(t *testing.T) {
	for _, in := range []string{
		"12,345 raised of 40,000,000",
		"$1,234 / $5,000",
		"3 donors gave $120",
	} {
		if got, err := ParseAmount(in); !errors.Is(err, ErrAmbiguousAmount) {
			t.Errorf("ParseAmount(%q) = %v, %v; want ErrAmbiguousAmount", in, got, err)
		}
	}
}

// --- New ---

func TestNew_UnsupportedType(t *testing.T) {
	if _, err := New(config.Source{ID: "x", Type: "otelcol"}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

// --- authRoundTripper ---

func TestAuthRoundTripper_Headers(t *testing.T) {
	t.Setenv("WW_KEY", "k-123")
	t.Setenv("WW_TOKEN", "tok")
	t.Setenv("WW_PASS", "pw")

	tests := []struct {
		name  string
		auth  config.AuthConfig
		check func(*testing.T, *http.Request)
	}{
		{"apikey", config.AuthConfig{Mode: "apikey", Header: "X-Api-Key", KeyEnv: "WW_KEY"}, func(t *testing.T, r *http.Request) {
			if got := r.Header.Get("X-Api-Key"); got != "k-123" {
				t.Errorf("X-Api-Key = %q", got)
			}
		}},
		{"bearer", config.AuthConfig{Mode: "bearer", TokenEnv: "WW_TOKEN"}, func(t *testing.T, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer tok" {
				t.Errorf("Authorization = %q", got)
			}
		}},
		{"basic", config.AuthConfig{Mode: "basic", Username: "ww", PasswordEnv: "WW_PASS"}, func(t *testing.T, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || u != "ww" || p != "pw" {
				t.Errorf("BasicAuth = %q %q %v", u, p, ok)
			}
		}},
		{"none", config.AuthConfig{Mode: "none"}, func(t *testing.T, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "" {
				t.Errorf("Authorization = %q, want empty", got)
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen *http.Request
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r
				w.WriteHeader(http.StatusNoContent)
			}))
			defer srv.Close()

			client := buildHTTPClient(config.Source{ID: "a", UserAgent: "ww-test", Auth: tc.auth})
			resp, err := client.Get(srv.URL)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			resp.Body.Close()

			if got := seen.Header.Get("User-Agent"); got != "ww-test" {
				t.Errorf("User-Agent = %q", got)
			}
			tc.check(t, seen)
		})
	}
}

// --- breaker ---

type fakeScraper struct {
	calls int
	fail  bool
}

func (f *fakeScraper) Scrape(context.Context) (*Reading, error) {
	f.calls++
	r := newReading("fake", config.TypeHTML)
	if f.fail {
		r.Err = errors.New("boom")
	}
	return r, nil
}

func TestGuarded_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeScraper{fail: true}
	src := config.Source{ID: "fake", Type: config.TypeHTML, Breaker: config.BreakerConfig{MaxFailures: 2, Timeout: time.Hour}}
	g := newGuarded(src, inner)

	for i := 0; i < 2; i++ {
		res, err := g.Scrape(context.Background())
		if err != nil || res.Err == nil {
			t.Fatalf("scrape %d: res.Err = %v, err = %v", i, res.Err, err)
		}
	}
	if g.State() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", g.State())
	}

	res, err := g.Scrape(context.Background())
	if err != nil {
		t.Fatalf("Scrape() hard error = %v", err)
	}
	if !errors.Is(res.Err, gobreaker.ErrOpenState) {
		t.Errorf("res.Err = %v, want ErrOpenState", res.Err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2 (open breaker must not call through)", inner.calls)
	}
}

func TestGuarded_SuccessResetsFailures(t *testing.T) {
	inner := &fakeScraper{fail: true}
	src := config.Source{ID: "fake", Breaker: config.BreakerConfig{MaxFailures: 2, Timeout: time.Hour}}
	g := newGuarded(src, inner)

	_, _ = g.Scrape(context.Background())
	inner.fail = false
	_, _ = g.Scrape(context.Background())
	inner.fail = true
	_, _ = g.Scrape(context.Background())

	if g.State() != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", g.State())
	}
}
