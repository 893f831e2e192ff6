package analysis

import (
	"errors"

	"github.com/waterworm/waterworm/pkg/progresslog"
	"github.com/waterworm/waterworm/pkg/types"
)

// SourceMeta identifies the source a snapshot describes.
type SourceMeta struct {
	ID      string
	Name    string
	PageURL string
	Goal    types.Goal
}

// BuildSnapshot analyzes samples, in log order, and combines the result with
// the latest sample's pace against meta.Goal. A log without positive
// increments yields a snapshot with Insufficient set and no statistics.
func BuildSnapshot(meta SourceMeta, samples []types.Sample) types.Snapshot {
	snap := types.Snapshot{
		SourceID:    meta.ID,
		Name:        meta.Name,
		PageURL:     meta.PageURL,
		Goal:        meta.Goal,
		SampleCount: len(samples),
		State:       StateUnknown,
	}
	if snap.Name == "" {
		snap.Name = meta.ID
	}

	latest, ok := progresslog.Latest(samples)
	if !ok {
		snap.Insufficient = true
		snap.Series = []types.SeriesPoint{}
		snap.Histogram = Histogram(nil)
		return snap
	}
	snap.Amount = latest.Amount
	snap.LastSample = latest.Timestamp

	pace := Pace(meta.Goal, latest)
	snap.Target = pace.Target
	snap.PacePct = pace.PacePct
	snap.Remaining = pace.Remaining
	snap.DaysLeft = pace.DaysLeft
	snap.State = pace.State

	rep, err := Analyze(samples)
	snap.Series = rep.Series()
	snap.Histogram = Histogram(rep.Increments)
	snap.NegativeCount = rep.NegativeCount
	snap.LastIncrement = rep.Increments[len(rep.Increments)-1]
	if err != nil {
		snap.Insufficient = errors.Is(err, ErrInsufficientData)
		if !snap.Insufficient {
			snap.ErrorMessage = err.Error()
		}
		return snap
	}

	snap.MeanIncrement = rep.Mean
	snap.MedianIncrement = rep.Median
	snap.P95Increment = rep.P95
	snap.P99Increment = rep.P99
	snap.Threshold = rep.Threshold
	snap.LargeEvents = rep.LargeEvents
	snap.LargeTotal = rep.LargeTotal
	snap.RegularTotal = rep.RegularTotal
	snap.SmoothedFinal = rep.SmoothedFinal
	return snap
}
