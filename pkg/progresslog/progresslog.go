package progresslog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waterworm/waterworm/pkg/format"
	"github.com/waterworm/waterworm/pkg/types"
)

// Column names of the log header.
const (
	ColTimestamp = "timestamp"
	ColAmount    = "amount"
)

// timeLayouts are the accepted timestamp forms, tried in order. Layouts
// without a zone are read as UTC.
var timeLayouts = []string{
	format.TimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// Append writes one row to the log at path, creating the file (and its
// directory) with a header row when it does not exist yet.
func Append(path string, ts time.Time, amount decimal.Decimal) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("progresslog: create dir: %w", err)
		}
	}

	needHeader := true
	if fi, err := os.Stat(path); err == nil && fi.Size() > 0 {
		needHeader = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("progresslog: open %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write([]string{ColTimestamp, ColAmount}); err != nil {
			return fmt.Errorf("progresslog: write header: %w", err)
		}
	}
	if err := w.Write([]string{ts.UTC().Format(format.TimeLayout), amount.String()}); err != nil {
		return fmt.Errorf("progresslog: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("progresslog: flush %q: %w", path, err)
	}
	return nil
}

// Read parses the log at path. A missing file is an error.
func Read(path string) ([]types.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("progresslog: open %q: %w", path, err)
	}
	defer f.Close()

	samples, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// Parse decodes a log from r. Rows are returned in file order.
// Column order is taken from the header; extra columns are ignored.
func Parse(r io.Reader) ([]types.Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("progresslog: empty log: missing header")
		}
		return nil, fmt.Errorf("progresslog: read header: %w", err)
	}

	tsCol, amountCol := -1, -1
	for i, h := range headers {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case ColTimestamp:
			tsCol = i
		case ColAmount:
			amountCol = i
		}
	}
	if tsCol < 0 || amountCol < 0 {
		return nil, fmt.Errorf("progresslog: header %v: want columns %q and %q", headers, ColTimestamp, ColAmount)
	}

	var samples []types.Sample
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("progresslog: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if len(row) <= tsCol || len(row) <= amountCol {
			return nil, fmt.Errorf("progresslog: line %d: want %d fields, got %d", line, len(headers), len(row))
		}

		ts, err := ParseTimestamp(row[tsCol])
		if err != nil {
			return nil, fmt.Errorf("progresslog: line %d: %w", line, err)
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(row[amountCol]))
		if err != nil {
			return nil, fmt.Errorf("progresslog: line %d: amount %q: %w", line, row[amountCol], err)
		}
		samples = append(samples, types.Sample{Timestamp: ts, Amount: amount.InexactFloat64()})
	}
	return samples, nil
}

// ParseTimestamp parses an ISO-8601 style timestamp. Values without a zone
// are taken as UTC; the result is always in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: unrecognised format", s)
}

// Normalize returns a copy of samples sorted by timestamp (stable) with
// exact duplicate rows removed.
func Normalize(samples []types.Sample) []types.Sample {
	out := make([]types.Sample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	type key struct {
		ns     int64
		amount float64
	}
	seen := make(map[key]struct{}, len(out))
	deduped := out[:0]
	for _, s := range out {
		k := key{s.Timestamp.UnixNano(), s.Amount}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		deduped = append(deduped, s)
	}
	return deduped
}

// Latest returns the sample with the greatest timestamp. On ties the one
// appearing last in the log wins. ok is false for an empty log.
func Latest(samples []types.Sample) (latest types.Sample, ok bool) {
	for i, s := range samples {
		if i == 0 || !s.Timestamp.Before(latest.Timestamp) {
			latest = s
		}
	}
	return latest, len(samples) > 0
}
