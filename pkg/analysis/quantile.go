package analysis

import (
	"fmt"
	"math"
	"sort"
)

// Quantile returns the q-th quantile (0 ≤ q ≤ 1) of values using linear
// interpolation between the closest ranks: position q*(n-1) in the sorted
// data, interpolating between its floor and ceiling neighbours.
// values is not modified.
func Quantile(values []float64, q float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrInsufficientData
	}
	if q < 0 || q > 1 || math.IsNaN(q) {
		return 0, fmt.Errorf("analysis: quantile %v out of range [0, 1]", q)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo], nil
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac, nil
}
