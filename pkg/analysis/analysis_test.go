package analysis

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/waterworm/waterworm/pkg/types"
)

// baseTime is a fixed reference point so all test timings are deterministic.
var baseTime = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

// series builds samples ten minutes apart from the given cumulative amounts.
func series(amounts ...float64) []types.Sample {
	out := make([]types.Sample, len(amounts))
	for i, a := range amounts {
		out[i] = types.Sample{Timestamp: baseTime.Add(time.Duration(i) * 10 * time.Minute), Amount: a}
	}
	return out
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// --- Increments -------------------------------------------------------------

func TestIncrements_LengthAndFirstElement(t *testing.T) {
	tests := []struct {
		name    string
		samples []types.Sample
	}{
		{"empty", nil},
		{"single", series(100)},
		{"rising", series(100, 150, 1000, 1050)},
		{"glitch", series(100, 90, 90, 200)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inc := Increments(tc.samples)
			if len(inc) != len(tc.samples) {
				t.Fatalf("len = %d, want %d", len(inc), len(tc.samples))
			}
			if len(inc) > 0 && inc[0] != 0 {
				t.Errorf("inc[0] = %v, want 0", inc[0])
			}
		})
	}
}

func TestIncrements_TelescopingSum(t *testing.T) {
	s := series(1000.25, 1010.5, 1009.75, 1500, 1500, 2750.1)
	var sum float64
	for _, v := range Increments(s) {
		sum += v
	}
	want := s[len(s)-1].Amount - s[0].Amount
	if !almostEqual(sum, want, 1e-9) {
		t.Errorf("sum(increments) = %v, want %v", sum, want)
	}
}

func TestIncrements_KeepsNegativeAndZero(t *testing.T) {
	got := Increments(series(100, 90, 90, 200))
	want := []float64{0, -10, 0, 110}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Increments = %v, want %v", got, want)
	}
}

// --- Threshold / median -----------------------------------------------------

func TestThreshold_LinearInterpolation(t *testing.T) {
	// Positives sorted: [50, 50, 850]; position 0.95*2 = 1.9 → 50 + 800*0.9.
	got, err := Threshold([]float64{0, 50, 850, 50})
	if err != nil {
		t.Fatalf("Threshold() error = %v", err)
	}
	if !almostEqual(got, 770, 1e-9) {
		t.Errorf("Threshold = %v, want 770", got)
	}
}

func TestThreshold_IgnoresNonPositive(t *testing.T) {
	got, err := Threshold([]float64{0, -500, 0, 20, -1})
	if err != nil {
		t.Fatalf("Threshold() error = %v", err)
	}
	if got != 20 {
		t.Errorf("Threshold with one positive = %v, want 20", got)
	}
}

func TestThreshold_NoPositive_InsufficientData(t *testing.T) {
	for _, inc := range [][]float64{nil, {0}, {0, 0, -5}} {
		if _, err := Threshold(inc); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("Threshold(%v) err = %v, want ErrInsufficientData", inc, err)
		}
	}
}

func TestMedianPositive(t *testing.T) {
	got, err := MedianPositive([]float64{0, 10, -3, 30, 20, 40})
	if err != nil {
		t.Fatalf("MedianPositive() error = %v", err)
	}
	if got != 25 {
		t.Errorf("MedianPositive = %v, want 25", got)
	}

	if _, err := MedianPositive([]float64{0, -1}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("MedianPositive without positives err = %v, want ErrInsufficientData", err)
	}
}

// --- ClassifyLarge ----------------------------------------------------------

func TestClassifyLarge_ExclusiveBoundary(t *testing.T) {
	inc := []float64{0, 99.99, 100, 100.01, -200}
	got := ClassifyLarge(inc, 100)
	want := []bool{false, false, false, true, false}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ClassifyLarge = %v, want %v", got, want)
	}
}

func TestClassifyLarge_ThresholdItselfNeverLarge(t *testing.T) {
	inc := Increments(series(0, 10, 20, 35, 60, 100, 1100))
	th, err := Threshold(inc)
	if err != nil {
		t.Fatalf("Threshold() error = %v", err)
	}
	for i, large := range ClassifyLarge(inc, th) {
		if large != (inc[i] > th) {
			t.Errorf("index %d: large=%v for increment %v, threshold %v", i, large, inc[i], th)
		}
	}
	if got := ClassifyLarge([]float64{th}, th); got[0] {
		t.Error("an increment equal to the threshold must not be large")
	}
}

// --- Smooth -----------------------------------------------------------------

func TestSmooth_ReplacesLargeWithMedian(t *testing.T) {
	s := series(100, 150, 1000, 1050)
	inc := Increments(s)
	got := Smooth(s, inc, []bool{false, false, true, false}, 50)
	want := []float64{100, 150, 200, 250}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Smooth = %v, want %v", got, want)
	}
}

func TestSmooth_PassesNonPositiveThrough(t *testing.T) {
	s := series(500, 480, 480, 5000, 5010)
	inc := Increments(s)
	got := Smooth(s, inc, []bool{false, false, false, true, false}, 15)
	// 500, 500-20, +0, +15 (large replaced), +10
	want := []float64{500, 480, 480, 495, 505}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Smooth = %v, want %v", got, want)
	}
}

func TestSmooth_Empty(t *testing.T) {
	if got := Smooth(nil, nil, nil, 10); len(got) != 0 {
		t.Errorf("Smooth(empty) = %v, want empty", got)
	}
}

func TestSmooth_DoesNotMutateInputs(t *testing.T) {
	s := series(100, 150, 1000, 1050)
	inc := Increments(s)
	large := []bool{false, false, true, false}
	before := append([]float64(nil), inc...)

	Smooth(s, inc, large, 50)

	if !reflect.DeepEqual(inc, before) {
		t.Errorf("increments mutated: %v, was %v", inc, before)
	}
	if s[2].Amount != 1000 {
		t.Errorf("samples mutated: s[2].Amount = %v", s[2].Amount)
	}
}

// --- Analyze ----------------------------------------------------------------

func TestAnalyze_ConcreteScenario(t *testing.T) {
	rep, err := Analyze(series(100, 150, 1000, 1050))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if want := []float64{0, 50, 850, 50}; !reflect.DeepEqual(rep.Increments, want) {
		t.Errorf("Increments = %v, want %v", rep.Increments, want)
	}
	if want := []float64{50, 850, 50}; !reflect.DeepEqual(rep.Positive, want) {
		t.Errorf("Positive = %v, want %v", rep.Positive, want)
	}
	if rep.Median != 50 {
		t.Errorf("Median = %v, want 50", rep.Median)
	}
	if rep.Threshold >= 850 {
		t.Fatalf("Threshold = %v, want < 850", rep.Threshold)
	}
	if want := []bool{false, false, true, false}; !reflect.DeepEqual(rep.Large, want) {
		t.Errorf("Large = %v, want %v", rep.Large, want)
	}
	if want := []float64{100, 150, 200, 250}; !reflect.DeepEqual(rep.Smoothed, want) {
		t.Errorf("Smoothed = %v, want %v", rep.Smoothed, want)
	}
}

func TestAnalyze_Summary(t *testing.T) {
	rep, err := Analyze(series(100, 150, 1000, 1050))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if !almostEqual(rep.Mean, 950.0/3, 1e-9) {
		t.Errorf("Mean = %v, want %v", rep.Mean, 950.0/3)
	}
	if !almostEqual(rep.P95, 770, 1e-9) {
		t.Errorf("P95 = %v, want 770", rep.P95)
	}
	if !almostEqual(rep.P99, 834, 1e-9) {
		t.Errorf("P99 = %v, want 834", rep.P99)
	}
	if len(rep.LargeEvents) != 1 || rep.LargeEvents[0].Increment != 850 {
		t.Fatalf("LargeEvents = %+v, want one event of 850", rep.LargeEvents)
	}
	if !rep.LargeEvents[0].Timestamp.Equal(baseTime.Add(20 * time.Minute)) {
		t.Errorf("LargeEvents[0].Timestamp = %v", rep.LargeEvents[0].Timestamp)
	}
	if rep.LargeTotal != 850 {
		t.Errorf("LargeTotal = %v, want 850", rep.LargeTotal)
	}
	if rep.RegularTotal != 100 {
		t.Errorf("RegularTotal = %v, want 100", rep.RegularTotal)
	}
	if rep.SmoothedFinal != 250 || rep.OriginalFinal != 1050 {
		t.Errorf("finals = (%v, %v), want (250, 1050)", rep.SmoothedFinal, rep.OriginalFinal)
	}
}

func TestAnalyze_RegularTotalIncludesNegative(t *testing.T) {
	rep, err := Analyze(series(100, 120, 110, 5000))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	// Positives [20, 4890]; threshold sits below 4890 so it is the only large one.
	if rep.LargeTotal != 4890 {
		t.Errorf("LargeTotal = %v, want 4890", rep.LargeTotal)
	}
	if rep.RegularTotal != 10 {
		t.Errorf("RegularTotal = %v, want 10 (20 - 10)", rep.RegularTotal)
	}
	if rep.NegativeCount != 1 {
		t.Errorf("NegativeCount = %d, want 1", rep.NegativeCount)
	}
	if !almostEqual(rep.LargeTotal+rep.RegularTotal, rep.OriginalFinal-rep.Samples[0].Amount, 1e-9) {
		t.Error("large + regular totals must equal the overall change")
	}
}

func TestAnalyze_SmoothedMayDipOnGlitch(t *testing.T) {
	rep, err := Analyze(series(100, 200, 150, 250))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if rep.Smoothed[2] >= rep.Smoothed[1] {
		t.Errorf("Smoothed = %v, want a dip at index 2", rep.Smoothed)
	}
}

func TestAnalyze_SmoothedNonDecreasingWithoutGlitches(t *testing.T) {
	rep, err := Analyze(series(10, 20, 35, 36, 900, 905, 930, 8000, 8010))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	for i := 1; i < len(rep.Smoothed); i++ {
		if rep.Smoothed[i] < rep.Smoothed[i-1] {
			t.Fatalf("Smoothed decreases at %d: %v", i, rep.Smoothed)
		}
	}
}

func TestAnalyze_InsufficientData(t *testing.T) {
	tests := []struct {
		name    string
		samples []types.Sample
	}{
		{"empty", nil},
		{"single", series(100)},
		{"flat", series(100, 100, 100)},
		{"falling", series(100, 90, 80)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rep, err := Analyze(tc.samples)
			if !errors.Is(err, ErrInsufficientData) {
				t.Fatalf("err = %v, want ErrInsufficientData", err)
			}
			if rep == nil {
				t.Fatal("partial report should still be returned")
			}
			if len(rep.Increments) != len(tc.samples) {
				t.Errorf("Increments len = %d, want %d", len(rep.Increments), len(tc.samples))
			}
			if rep.Smoothed != nil || rep.Large != nil {
				t.Error("Smoothed and Large must stay nil without statistics")
			}
		})
	}
}

func TestAnalyze_DuplicateRows(t *testing.T) {
	samples := series(100, 150, 150, 1000, 1050)
	samples[2].Timestamp = samples[1].Timestamp // same row logged twice

	rep, err := Analyze(samples)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	wantInc := []float64{0, 50, 0, 850, 50}
	for i, v := range wantInc {
		if rep.Increments[i] != v {
			t.Errorf("Increments[%d] = %v, want %v", i, rep.Increments[i], v)
		}
	}
	if len(rep.Positive) != 3 {
		t.Errorf("Positive = %v, want the duplicate's zero left out", rep.Positive)
	}
	if rep.Median != 50 || !almostEqual(rep.Mean, 950.0/3, 1e-9) {
		t.Errorf("Median = %v, Mean = %v", rep.Median, rep.Mean)
	}
	if !almostEqual(rep.Threshold, 770, 1e-9) {
		t.Errorf("Threshold = %v, want 770", rep.Threshold)
	}
	if rep.Large[2] {
		t.Error("duplicate row classified as large")
	}
	wantSmoothed := []float64{100, 150, 150, 200, 250}
	for i, v := range wantSmoothed {
		if rep.Smoothed[i] != v {
			t.Errorf("Smoothed[%d] = %v, want %v", i, rep.Smoothed[i], v)
		}
	}
	if rep.NegativeCount != 0 {
		t.Errorf("NegativeCount = %d, want 0", rep.NegativeCount)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	s := series(100, 150, 149, 1000, 1050, 1050, 1300)
	a, errA := Analyze(s)
	b, errB := Analyze(s)
	if errA != nil || errB != nil {
		t.Fatalf("Analyze() errors = %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("two runs over the same samples differ")
	}
}

func TestReport_Series(t *testing.T) {
	rep, err := Analyze(series(100, 150, 1000, 1050))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	pts := rep.Series()
	if len(pts) != 4 {
		t.Fatalf("Series len = %d, want 4", len(pts))
	}
	if !pts[2].Large || pts[2].Increment != 850 || pts[2].Smoothed != 200 {
		t.Errorf("Series[2] = %+v", pts[2])
	}
}

func TestReport_Series_Insufficient(t *testing.T) {
	rep, _ := Analyze(series(100, 100))
	pts := rep.Series()
	if len(pts) != 2 || pts[1].Smoothed != 100 || pts[1].Large {
		t.Errorf("Series = %+v, want smoothed equal to amount", pts)
	}
}

// --- Quantile ---------------------------------------------------------------

func TestQuantile(t *testing.T) {
	data := []float64{40, 10, 30, 20}
	tests := []struct {
		q    float64
		want float64
	}{
		{0, 10},
		{0.5, 25},
		{1, 40},
		{0.95, 38.5},
	}
	for _, tc := range tests {
		got, err := Quantile(data, tc.q)
		if err != nil {
			t.Fatalf("Quantile(%v) error = %v", tc.q, err)
		}
		if !almostEqual(got, tc.want, 1e-9) {
			t.Errorf("Quantile(%v) = %v, want %v", tc.q, got, tc.want)
		}
	}
	if data[0] != 40 {
		t.Error("Quantile must not sort its input in place")
	}
}

func TestQuantile_OutOfRange(t *testing.T) {
	if _, err := Quantile([]float64{1}, 1.5); err == nil {
		t.Error("expected error for q > 1")
	}
}
