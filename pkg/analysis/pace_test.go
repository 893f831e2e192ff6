package analysis

import (
	"testing"
	"time"

	"github.com/waterworm/waterworm/pkg/types"
)

var goal = types.Goal{
	Amount: 40_000_000,
	Start:  time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	End:    time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
}

func at(days float64) time.Time {
	return goal.Start.Add(time.Duration(days * float64(24*time.Hour)))
}

func TestTarget(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want float64
	}{
		{"before start", at(-3), 0},
		{"start", at(0), 0},
		{"midway", at(15), 20_000_000},
		{"end", at(30), 40_000_000},
		{"after end", at(45), 40_000_000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Target(goal, tc.t); !almostEqual(got, tc.want, 1e-6) {
				t.Errorf("Target = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPace_States(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{"ahead", 21_000_000, StateAhead},
		{"exactly on line", 20_000_000, StateAhead},
		{"on track", 18_500_000, StateOnTrack},
		{"behind", 12_000_000, StateBehind},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Pace(goal, types.Sample{Timestamp: at(15), Amount: tc.amount})
			if p.State != tc.want {
				t.Errorf("State = %q (pace %.2f%%), want %q", p.State, p.PacePct, tc.want)
			}
		})
	}
}

func TestPace_Fields(t *testing.T) {
	p := Pace(goal, types.Sample{Timestamp: at(15), Amount: 10_000_000})
	if !almostEqual(p.PacePct, 50, 1e-9) {
		t.Errorf("PacePct = %v, want 50", p.PacePct)
	}
	if p.Remaining != 30_000_000 {
		t.Errorf("Remaining = %v, want 30M", p.Remaining)
	}
	if !almostEqual(p.DaysLeft, 15, 1e-9) {
		t.Errorf("DaysLeft = %v, want 15", p.DaysLeft)
	}
}

func TestPace_Unknown(t *testing.T) {
	tests := []struct {
		name string
		g    types.Goal
		ts   time.Time
	}{
		{"before start", goal, at(-1)},
		{"no amount", types.Goal{Start: goal.Start, End: goal.End}, at(10)},
		{"inverted window", types.Goal{Amount: 10, Start: goal.End, End: goal.Start}, at(10)},
		{"no start", types.Goal{Amount: 10, End: goal.End}, at(10)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Pace(tc.g, types.Sample{Timestamp: tc.ts, Amount: 1000})
			if p.State != StateUnknown {
				t.Errorf("State = %q, want unknown", p.State)
			}
			if p.PacePct != 0 {
				t.Errorf("PacePct = %v, want 0", p.PacePct)
			}
		})
	}
}

func TestPace_GoalReached(t *testing.T) {
	p := Pace(goal, types.Sample{Timestamp: at(40), Amount: 41_000_000})
	if p.Remaining != 0 || p.DaysLeft != 0 {
		t.Errorf("Remaining=%v DaysLeft=%v, want 0, 0", p.Remaining, p.DaysLeft)
	}
	if p.State != StateAhead {
		t.Errorf("State = %q, want ahead", p.State)
	}
}

func TestWormSeries_ClipsBeforeStart(t *testing.T) {
	pts := WormSeries(goal, []types.Sample{
		{Timestamp: at(-2), Amount: 5},
		{Timestamp: at(1.5), Amount: 10},
	})
	if pts[0].Days != 0 {
		t.Errorf("pts[0].Days = %v, want 0", pts[0].Days)
	}
	if !almostEqual(pts[1].Days, 1.5, 1e-9) || pts[1].Amount != 10 {
		t.Errorf("pts[1] = %+v", pts[1])
	}
}

func TestWormSeries_NoGoal(t *testing.T) {
	// Rows out of order: day zero is the earliest sample, not the zero time.
	pts := WormSeries(types.Goal{}, []types.Sample{
		{Timestamp: at(3), Amount: 300},
		{Timestamp: at(1), Amount: 100},
		{Timestamp: at(2.5), Amount: 250},
	})
	want := []float64{2, 0, 1.5}
	for i, p := range pts {
		if !almostEqual(p.Days, want[i], 1e-9) {
			t.Errorf("pts[%d].Days = %v, want %v", i, p.Days, want[i])
		}
	}
	if got := WormOrigin(types.Goal{}, nil); !got.IsZero() {
		t.Errorf("WormOrigin of an empty log = %v, want zero", got)
	}
	if got := WormOrigin(goal, []types.Sample{{Timestamp: at(5)}}); !got.Equal(goal.Start) {
		t.Errorf("WormOrigin with a goal = %v, want the goal start", got)
	}
}

func TestHasGoal(t *testing.T) {
	tests := []struct {
		name string
		g    types.Goal
		want bool
	}{
		{"complete", goal, true},
		{"zero value", types.Goal{}, false},
		{"no amount", types.Goal{Start: goal.Start, End: goal.End}, false},
		{"no start", types.Goal{Amount: 10, End: goal.End}, false},
		{"inverted", types.Goal{Amount: 10, Start: goal.End, End: goal.Start}, false},
	}
	for _, tc := range tests {
		if got := HasGoal(tc.g); got != tc.want {
			t.Errorf("%s: HasGoal = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTargetLine(t *testing.T) {
	line := TargetLine(goal)
	if line[0] != (WormPoint{}) {
		t.Errorf("line start = %+v, want origin", line[0])
	}
	if line[1].Days != 30 || line[1].Amount != goal.Amount {
		t.Errorf("line end = %+v, want {30 40M}", line[1])
	}
}
