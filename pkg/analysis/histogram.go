package analysis

import (
	"math"

	"github.com/waterworm/waterworm/pkg/types"
)

// binEdges are the lower bounds of the donation-size buckets; each bucket
// is [edge[i], edge[i+1]) and the last one is unbounded.
var binEdges = []float64{0, 10, 100, 500, 1000, 5000, 10000, 100000, math.Inf(1)}

var binLabels = []string{
	"0-10",
	"10-100",
	"100-500",
	"500-1000",
	"1000-5000",
	"5000-10,000",
	"10,000-100,000",
	"100,000+",
}

// Histogram sums the strictly positive increments into donation-size bins.
// Every bin is returned, including empty ones, in ascending order.
func Histogram(increments []float64) []types.Bin {
	bins := make([]types.Bin, len(binLabels))
	for i := range bins {
		bins[i] = types.Bin{Label: binLabels[i], Lower: binEdges[i], Upper: binEdges[i+1]}
	}
	for _, v := range Positive(increments) {
		for i := range bins {
			if v >= bins[i].Lower && v < bins[i].Upper {
				bins[i].Count++
				bins[i].Total += v
				break
			}
		}
	}
	return bins
}

// HistogramTotal returns the sum of all bin totals.
func HistogramTotal(bins []types.Bin) float64 {
	var total float64
	for _, b := range bins {
		total += b.Total
	}
	return total
}
