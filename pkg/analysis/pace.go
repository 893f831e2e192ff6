package analysis

import (
	"time"

	"github.com/waterworm/waterworm/pkg/types"
)

// Pace states.
const (
	StateAhead   = "ahead"
	StateOnTrack = "on_track"
	StateBehind  = "behind"
	StateUnknown = "unknown"
)

// Thresholds on PacePct that map to a pace state.
const (
	ThresholdAhead   = 100.0
	ThresholdOnTrack = 90.0
)

const day = 24 * time.Hour

// PaceResult compares one sample with the goal's straight target line.
type PaceResult struct {
	// Target is the amount the straight line from (Start, 0) to
	// (End, Goal.Amount) reaches at the sample's timestamp.
	Target float64

	// PacePct is Amount / Target * 100. Zero when Target is zero.
	PacePct float64

	// Remaining is the amount still needed to reach the goal, never negative.
	Remaining float64

	// DaysLeft is the time until End in days, never negative.
	DaysLeft float64

	// State is one of: ahead | on_track | behind | unknown.
	State string
}

// WormPoint is one point of the worm chart.
type WormPoint struct {
	Days   float64
	Amount float64
}

// Target returns the target line's value at t. Before Start it is 0, after
// End it is the goal amount.
func Target(goal types.Goal, t time.Time) float64 {
	total := goal.End.Sub(goal.Start)
	if total <= 0 {
		return 0
	}
	return goal.Amount * clamp01(float64(t.Sub(goal.Start))/float64(total))
}

// Pace evaluates s against goal.
//
// The state is "unknown" when the goal is not usable (non-positive amount,
// End not after Start) or the sample predates the campaign, since the
// target is still zero then.
func Pace(goal types.Goal, s types.Sample) PaceResult {
	out := PaceResult{State: StateUnknown}
	if goal.Amount > 0 && s.Amount < goal.Amount {
		out.Remaining = goal.Amount - s.Amount
	}
	if left := goal.End.Sub(s.Timestamp); left > 0 {
		out.DaysLeft = float64(left) / float64(day)
	}

	if !HasGoal(goal) {
		return out
	}
	out.Target = Target(goal, s.Timestamp)
	if out.Target <= 0 {
		return out
	}

	out.PacePct = s.Amount / out.Target * 100
	out.State = stateFromPace(out.PacePct)
	return out
}

// HasGoal reports whether goal describes a usable campaign: a positive
// amount over a period with a set start and an end after it.
func HasGoal(goal types.Goal) bool {
	return goal.Amount > 0 && !goal.Start.IsZero() && goal.End.After(goal.Start)
}

// WormOrigin is day zero of the worm chart: the goal's start, or the
// earliest sample when no start is configured.
func WormOrigin(goal types.Goal, samples []types.Sample) time.Time {
	if !goal.Start.IsZero() || len(samples) == 0 {
		return goal.Start
	}
	origin := samples[0].Timestamp
	for _, s := range samples[1:] {
		if s.Timestamp.Before(origin) {
			origin = s.Timestamp
		}
	}
	return origin
}

// WormSeries converts samples into worm chart points: days since
// WormOrigin (clipped at 0) against the cumulative amount.
func WormSeries(goal types.Goal, samples []types.Sample) []WormPoint {
	origin := WormOrigin(goal, samples)
	out := make([]WormPoint, len(samples))
	for i, s := range samples {
		days := float64(s.Timestamp.Sub(origin)) / float64(day)
		if days < 0 {
			days = 0
		}
		out[i] = WormPoint{Days: days, Amount: s.Amount}
	}
	return out
}

// TargetLine returns the two end points of the worm chart's target line.
func TargetLine(goal types.Goal) [2]WormPoint {
	return [2]WormPoint{
		{Days: 0, Amount: 0},
		{Days: float64(goal.End.Sub(goal.Start)) / float64(day), Amount: goal.Amount},
	}
}

// stateFromPace maps a pace percentage to a named state.
func stateFromPace(pct float64) string {
	switch {
	case pct >= ThresholdAhead:
		return StateAhead
	case pct >= ThresholdOnTrack:
		return StateOnTrack
	default:
		return StateBehind
	}
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
