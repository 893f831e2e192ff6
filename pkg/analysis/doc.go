// Package analysis derives incremental donations from a cumulative progress
// series and separates the underlying trend from outlier spikes.
//
// analysis.go holds the pure pipeline used by every consumer:
//
//	Increments     per-sample deltas, first element 0
//	Threshold      95th percentile of the strictly positive increments
//	ClassifyLarge  increment > threshold (exclusive boundary)
//	Smooth         cumulative series with large increments replaced by
//	               the median positive increment
//	Analyze        runs the pipeline and builds a Report
//
// Non-positive increments are valid data. They never enter the statistics
// and they pass through Smooth unchanged. When a series has no positive
// increment the statistics are undefined and ErrInsufficientData is returned.
//
// histogram.go buckets positive increments by size. pace.go compares the
// latest total with a straight-line goal (the worm chart's target line).
package analysis
