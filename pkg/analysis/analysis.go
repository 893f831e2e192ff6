package analysis

import (
	"errors"

	"github.com/montanaflynn/stats"

	"github.com/waterworm/waterworm/pkg/types"
)

// Quantiles reported for the positive increments.
const (
	ThresholdQuantile = 0.95
	TailQuantile      = 0.99
)

// ErrInsufficientData is returned when a series has no strictly positive
// increment, so the threshold and median are undefined.
var ErrInsufficientData = errors.New("analysis: insufficient data: no positive increments")

// Report is the full derived view of one progress series.
//
// Slices are index-aligned with Samples. When Analyze returns
// ErrInsufficientData only Samples, Increments, OriginalFinal and
// NegativeCount are populated.
type Report struct {
	Samples    []types.Sample
	Increments []float64
	Large      []bool
	Smoothed   []float64

	// Statistics over the strictly positive increments.
	Positive  []float64
	Mean      float64
	Median    float64
	P95       float64
	P99       float64
	Threshold float64

	LargeEvents   []types.LargeEvent
	LargeTotal    float64 // sum of increments classified as large
	RegularTotal  float64 // sum of every other increment, non-positive included
	SmoothedFinal float64
	OriginalFinal float64
	NegativeCount int
}

// Increments returns amount[i] - amount[i-1] for every sample, with 0 for
// the first one. The result has the same length as samples.
func Increments(samples []types.Sample) []float64 {
	out := make([]float64, len(samples))
	for i := 1; i < len(samples); i++ {
		out[i] = samples[i].Amount - samples[i-1].Amount
	}
	return out
}

// Positive returns the strictly positive increments, in order.
func Positive(increments []float64) []float64 {
	out := make([]float64, 0, len(increments))
	for _, v := range increments {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Threshold returns the 95th percentile of the strictly positive increments.
func Threshold(increments []float64) (float64, error) {
	return Quantile(Positive(increments), ThresholdQuantile)
}

// MedianPositive returns the median of the strictly positive increments.
func MedianPositive(increments []float64) (float64, error) {
	pos := Positive(increments)
	if len(pos) == 0 {
		return 0, ErrInsufficientData
	}
	return stats.Median(pos)
}

// ClassifyLarge reports, per increment, whether it exceeds threshold.
// An increment equal to threshold is not large.
func ClassifyLarge(increments []float64, threshold float64) []bool {
	out := make([]bool, len(increments))
	for i, v := range increments {
		out[i] = v > threshold
	}
	return out
}

// Smooth rebuilds the cumulative series from samples[0].Amount, adding
// median in place of every large increment and the increment itself
// otherwise. increments and isLarge must be index-aligned with samples.
func Smooth(samples []types.Sample, increments []float64, isLarge []bool, median float64) []float64 {
	if len(samples) == 0 {
		return []float64{}
	}
	out := make([]float64, len(samples))
	out[0] = samples[0].Amount
	for i := 1; i < len(samples); i++ {
		step := increments[i]
		if isLarge[i] {
			step = median
		}
		out[i] = out[i-1] + step
	}
	return out
}

// Analyze runs the full pipeline over samples in log order. Rows are not
// re-sorted, so an out-of-order row shows up as a negative increment. It
// never mutates samples.
func Analyze(samples []types.Sample) (*Report, error) {
	rep := &Report{
		Samples:    samples,
		Increments: Increments(samples),
	}
	if n := len(samples); n > 0 {
		rep.OriginalFinal = samples[n-1].Amount
	}
	for _, v := range rep.Increments {
		if v < 0 {
			rep.NegativeCount++
		}
	}

	rep.Positive = Positive(rep.Increments)
	if len(rep.Positive) == 0 {
		return rep, ErrInsufficientData
	}

	var err error
	if rep.Mean, err = stats.Mean(rep.Positive); err != nil {
		return rep, err
	}
	if rep.Median, err = stats.Median(rep.Positive); err != nil {
		return rep, err
	}
	if rep.P95, err = Quantile(rep.Positive, ThresholdQuantile); err != nil {
		return rep, err
	}
	if rep.P99, err = Quantile(rep.Positive, TailQuantile); err != nil {
		return rep, err
	}
	rep.Threshold = rep.P95

	rep.Large = ClassifyLarge(rep.Increments, rep.Threshold)
	rep.Smoothed = Smooth(samples, rep.Increments, rep.Large, rep.Median)
	rep.SmoothedFinal = rep.Smoothed[len(rep.Smoothed)-1]

	for i, large := range rep.Large {
		if large {
			rep.LargeTotal += rep.Increments[i]
			rep.LargeEvents = append(rep.LargeEvents, types.LargeEvent{
				Timestamp: samples[i].Timestamp,
				Increment: rep.Increments[i],
			})
			continue
		}
		rep.RegularTotal += rep.Increments[i]
	}

	return rep, nil
}

// Series returns the report as index-aligned chart rows. Smoothed and Large
// are zero-valued when the report has no statistics.
func (r *Report) Series() []types.SeriesPoint {
	out := make([]types.SeriesPoint, len(r.Samples))
	for i, s := range r.Samples {
		p := types.SeriesPoint{
			Timestamp: s.Timestamp,
			Amount:    s.Amount,
			Smoothed:  s.Amount,
			Increment: r.Increments[i],
		}
		if len(r.Smoothed) == len(r.Samples) {
			p.Smoothed = r.Smoothed[i]
			p.Large = r.Large[i]
		}
		out[i] = p
	}
	return out
}
