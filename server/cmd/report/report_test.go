package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

// writeLog writes a progress log with one row every ten minutes from
// 2025-08-01 00:00 UTC.
func writeLog(t *testing.T, dir, name string, amounts ...float64) string {
	t.Helper()
	start := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	var b strings.Builder
	b.WriteString("timestamp,amount\n")
	for i, a := range amounts {
		fmt.Fprintf(&b, "%s,%.2f\n", start.Add(time.Duration(i)*10*time.Minute).Format("2006-01-02 15:04:05"), a)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Errorf("%s is not a PNG", path)
	}
}

func TestAnalyze(t *testing.T) {
	log := writeLog(t, t.TempDir(), "tw_progress.csv", 1000, 1010, 1020, 1030, 1530, 1540)

	out, err := run(t, "analyze", "--log", log)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, want := range []string{
		"Donation statistics:",
		"Mean incremental: $108.00",
		"Median incremental: $10.00",
		"Using threshold of $402.00 for large donations",
		"2025-08-01 00:40: $500.00",
		"Total from large donations: $500.00",
		"Total from regular donations: $40.00",
		"Final filtered amount: $1,050.00",
		"Original final amount: $1,540.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestAnalyze_Charts(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "tw_progress.csv", 1000, 1010, 1020, 1030, 1530, 1540)
	charts := filepath.Join(dir, "charts")

	if _, err := run(t, "analyze", "--log", log, "--charts", charts); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	assertPNG(t, filepath.Join(charts, "trend.png"))
	assertPNG(t, filepath.Join(charts, "increments.png"))
}

func TestAnalyze_InsufficientData(t *testing.T) {
	log := writeLog(t, t.TempDir(), "tw_progress.csv", 500, 500, 480)

	out, err := run(t, "analyze", "--log", log)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "Not enough data: no positive increments in 3 samples") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "Negative increments: 1") {
		t.Errorf("output missing negative count: %q", out)
	}
}

func TestHistogram(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "tw_progress.csv", 1000, 1010, 1020, 1030, 1530, 1540)
	png := filepath.Join(dir, "hist.png")

	out, err := run(t, "histogram", "--log", log, "--out", png)
	if err != nil {
		t.Fatalf("histogram: %v", err)
	}
	for _, want := range []string{
		"Total amount by donation size range:",
		"0-10: $0.00",
		"10-100: $40.00",
		"500-1000: $500.00",
		"100,000+: $0.00",
		"Overall total: $540.00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	assertPNG(t, png)
}

func TestChart_FromConfig(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "tw_progress.csv", 1000, 1010, 1020, 1030, 1530, 1540)
	cfg := writeConfig(t, dir, fmt.Sprintf(`server:
  sources:
    - id: tw
      name: Team Waters
      log_path: %s
      goal:
        amount: 40000000
        start: 2025-08-01T00:00:00Z
        end: 2025-08-31T00:00:00Z
    - id: other
`, log))
	png := filepath.Join(dir, "worm.png")

	if _, err := run(t, "chart", "--config", cfg, "--source", "tw", "--out", png); err != nil {
		t.Fatalf("chart: %v", err)
	}
	assertPNG(t, png)
}

func TestHTML(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "tw_progress.csv", 1000, 1010, 1020, 1030, 1530, 1540)
	page := filepath.Join(dir, "docs", "index.html")

	if _, err := run(t, "html", "--log", log, "--out", page); err != nil {
		t.Fatalf("html: %v", err)
	}
	data, err := os.ReadFile(page)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)
	for _, want := range []string{
		"Latest total:",
		"$1,540.00",
		"2025-08-01 00:50:00 UTC",
		`src="worm_chart.png"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSourceResolution(t *testing.T) {
	dir := t.TempDir()
	log := writeLog(t, dir, "tw_progress.csv", 1, 2)
	two := writeConfig(t, dir, fmt.Sprintf(`server:
  sources:
    - id: tw
      log_path: %s
    - id: other
`, log))

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown source", []string{"histogram", "--config", two, "--source", "nope"}, `source "nope" not found`},
		{"ambiguous source", []string{"histogram", "--config", two}, "pick one with --source"},
		{"missing config", []string{"histogram", "--config", filepath.Join(dir, "absent.yaml")}, "absent.yaml"},
		{"missing log", []string{"histogram", "--log", filepath.Join(dir, "absent.csv")}, "absent.csv"},
		{"log overrides config", []string{"histogram", "--config", two, "--source", "other", "--log", log}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := run(t, tc.args...)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
