package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/waterworm/waterworm/pkg/analysis"
	"github.com/waterworm/waterworm/pkg/format"
	"github.com/waterworm/waterworm/pkg/progresslog"
	"github.com/waterworm/waterworm/pkg/types"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("render: no samples to chart")

// Chart size in pixels.
const (
	Width  = 1000
	Height = 600
)

var (
	colorProgress = drawing.ColorFromHex("1f77b4")
	colorSmoothed = drawing.ColorFromHex("2ca02c")
	colorLarge    = drawing.ColorFromHex("d62728")
)

// WormChart draws cumulative amount against days since the goal's start,
// together with the straight target line. Without a goal the days count
// from the first sample and no target line is drawn. Samples are sorted and
// deduplicated first; days before the start are clipped to zero.
func WormChart(w io.Writer, name string, goal types.Goal, samples []types.Sample) error {
	samples = progresslog.Normalize(samples)
	if len(samples) == 0 {
		return ErrNoData
	}

	origin := analysis.WormOrigin(goal, samples)
	points := analysis.WormSeries(goal, samples)
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.Days, p.Amount
	}
	xs, ys = padContinuous(xs, ys)

	line := analysis.TargetLine(goal)
	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    name + " progress",
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: colorProgress, StrokeWidth: 2, DotColor: colorProgress, DotWidth: 3},
		},
	}
	maxDays, maxAmount := xs[len(xs)-1], maxOf(ys)
	if analysis.HasGoal(goal) {
		series = append(series, chart.ContinuousSeries{
			Name:    "Target",
			XValues: []float64{line[0].Days, line[1].Days},
			YValues: []float64{line[0].Amount, line[1].Amount},
			Style:   chart.Style{StrokeColor: drawing.ColorBlack, StrokeWidth: 1.5, StrokeDashArray: []float64{6, 4}},
		})
		maxDays = math.Max(maxDays, line[1].Days)
		maxAmount = math.Max(maxAmount, goal.Amount)
	}

	ch := chart.Chart{
		Title:      name + " Fundraising Worm Chart",
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.XAxis{
			Name:           "Days since " + origin.UTC().Format("Jan 2"),
			Range:          &chart.ContinuousRange{Min: 0, Max: math.Max(maxDays, 1)},
			ValueFormatter: func(v interface{}) string { return fmt.Sprintf("%.0f", v) },
		},
		YAxis: chart.YAxis{
			Name:           "Amount Raised (USD)",
			Range:          &chart.ContinuousRange{Min: 0, Max: math.Max(maxAmount, 1)},
			ValueFormatter: moneyTick,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

// TrendChart draws the original cumulative series against the smoothed one
// in which large donations were replaced by the median increment.
func TrendChart(w io.Writer, name string, points []types.SeriesPoint) error {
	if len(points) == 0 {
		return ErrNoData
	}
	times := make([]time.Time, len(points))
	orig := make([]float64, len(points))
	smooth := make([]float64, len(points))
	for i, p := range points {
		times[i], orig[i], smooth[i] = p.Timestamp, p.Amount, p.Smoothed
	}
	tOrig, orig := padTime(times, orig)
	tSmooth, smooth := padTime(times, smooth)

	ch := chart.Chart{
		Title:      name + ": original vs smoothed progress",
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{Name: "Date", ValueFormatter: chart.TimeValueFormatterWithFormat("01/02 15:04")},
		YAxis: chart.YAxis{
			Name:           "Total Amount ($)",
			Range:          flatRange(orig, smooth),
			ValueFormatter: moneyTick,
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: "Original Data", XValues: tOrig, YValues: orig,
				Style: chart.Style{StrokeColor: colorProgress, StrokeWidth: 2}},
			chart.TimeSeries{Name: "Smoothed (large donations replaced)", XValues: tSmooth, YValues: smooth,
				Style: chart.Style{StrokeColor: colorSmoothed, StrokeWidth: 2}},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

// IncrementsChart scatters each increment over time, regular ones in blue and
// large ones in red. threshold labels the large series.
func IncrementsChart(w io.Writer, name string, points []types.SeriesPoint, threshold float64) error {
	if len(points) < 2 {
		return ErrNoData
	}
	var (
		regT, largeT []time.Time
		regV, largeV []float64
	)
	// The first row has no predecessor and carries no increment.
	for _, p := range points[1:] {
		if p.Large {
			largeT = append(largeT, p.Timestamp)
			largeV = append(largeV, p.Increment)
			continue
		}
		regT = append(regT, p.Timestamp)
		regV = append(regV, p.Increment)
	}

	var series []chart.Series
	if len(regT) > 0 {
		t, v := padTime(regT, regV)
		series = append(series, chart.TimeSeries{Name: "Regular Donations", XValues: t, YValues: v,
			Style: chart.Style{StrokeWidth: chart.Disabled, DotWidth: 3, DotColor: colorProgress}})
	}
	if len(largeT) > 0 {
		t, v := padTime(largeT, largeV)
		series = append(series, chart.TimeSeries{Name: "Large Donations (>" + format.MoneyWhole(threshold) + ")", XValues: t, YValues: v,
			Style: chart.Style{StrokeWidth: chart.Disabled, DotWidth: 6, DotColor: colorLarge}})
	}

	ch := chart.Chart{
		Title:      name + ": individual donation amounts",
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      chart.XAxis{Name: "Date", ValueFormatter: chart.TimeValueFormatterWithFormat("01/02 15:04")},
		YAxis: chart.YAxis{
			Name:           "Donation Amount ($)",
			Range:          flatRange(regV, largeV),
			ValueFormatter: moneyTick,
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

// HistogramChart draws the total amount per donation-size bin.
func HistogramChart(w io.Writer, name string, bins []types.Bin) error {
	if len(bins) == 0 {
		return ErrNoData
	}
	bars := make([]chart.Value, len(bins))
	var top float64
	for i, b := range bins {
		bars[i] = chart.Value{Label: b.Label, Value: b.Total}
		top = math.Max(top, b.Total)
	}

	bc := chart.BarChart{
		Title:      name + ": total donation amount by size range",
		Width:      1200,
		Height:     Height,
		BarWidth:   100,
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: 0, Max: math.Max(top*1.1, 1)},
			ValueFormatter: moneyTick,
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

func moneyTick(v interface{}) string {
	if f, ok := v.(float64); ok {
		return format.MoneyWhole(f)
	}
	return ""
}

// padContinuous duplicates a lone point one unit to the right so the x range
// is never zero.
func padContinuous(xs, ys []float64) ([]float64, []float64) {
	if len(xs) != 1 {
		return xs, ys
	}
	return []float64{xs[0], xs[0] + 1}, []float64{ys[0], ys[0]}
}

// padTime duplicates a lone point one minute later so the time range is
// never zero.
func padTime(ts []time.Time, ys []float64) ([]time.Time, []float64) {
	if len(ts) != 1 {
		return ts, ys
	}
	return []time.Time{ts[0], ts[0].Add(time.Minute)}, []float64{ys[0], ys[0]}
}

// flatRange returns an explicit range when every value is equal, which
// go-chart cannot auto-scale. Otherwise nil lets the axis scale itself.
func flatRange(sets ...[]float64) chart.Range {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, set := range sets {
		for _, v := range set {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return &chart.ContinuousRange{Min: 0, Max: 1}
	}
	if lo != hi {
		return nil
	}
	pad := math.Max(math.Abs(lo)*0.1, 1)
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func maxOf(vs []float64) float64 {
	m := math.Inf(-1)
	for _, v := range vs {
		m = math.Max(m, v)
	}
	return m
}
