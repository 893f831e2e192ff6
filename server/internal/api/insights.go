package api

import (
	"fmt"
	"sort"
	"time"

	"github.com/waterworm/waterworm/pkg/analysis"
	"github.com/waterworm/waterworm/pkg/format"
	"github.com/waterworm/waterworm/pkg/types"
)

// Insight is one human-readable hint about a source's progress.
type Insight struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number associated with the hint (e.g. pace %).
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeInsights derives hints from a snapshot, most severe first.
// staleAfter of zero disables the stale-log check.
func computeInsights(snap *types.Snapshot, now time.Time, staleAfter time.Duration) []Insight {
	var out []Insight

	if snap.ErrorMessage != "" {
		out = append(out, Insight{
			Key:    "analysis_failed",
			Level:  "critical",
			Title:  "Analysis failed",
			Detail: fmt.Sprintf("The progress log could not be analyzed: %s.", snap.ErrorMessage),
		})
	}

	if staleAfter > 0 && !snap.LastSample.IsZero() {
		if age := now.Sub(snap.LastSample); age > staleAfter {
			hours := age.Hours()
			out = append(out, Insight{
				Key:   "stale_log",
				Level: "warning",
				Title: "No new readings",
				Detail: fmt.Sprintf(
					"The newest reading is from %s, %.1f hours ago. "+
						"Check that the agent is running and that the page still shows the total.",
					format.Timestamp(snap.LastSample), hours),
				Value: &hours,
			})
		}
	}

	if snap.Insufficient {
		n := float64(snap.SampleCount)
		out = append(out, Insight{
			Key:   "insufficient_data",
			Level: "info",
			Title: "Not enough data",
			Detail: fmt.Sprintf(
				"The log holds %d readings without a single increase, so donation statistics "+
					"are not available yet. They appear once the total rises between two readings.",
				snap.SampleCount),
			Value: &n,
		})
	}

	if hint, ok := paceInsight(snap); ok {
		out = append(out, hint)
	}

	if n := len(snap.LargeEvents); n > 0 {
		share := 0.0
		if raised := snap.LargeTotal + snap.RegularTotal; raised > 0 {
			share = snap.LargeTotal / raised * 100
		}
		out = append(out, Insight{
			Key:   "large_donations",
			Level: "info",
			Title: fmt.Sprintf("%d large donations", n),
			Detail: fmt.Sprintf(
				"%d increments exceeded the 95th percentile of %s and brought in %s, "+
					"%.1f%% of the tracked change. Without them the total would be about %s.",
				n, format.Money(snap.Threshold), format.Money(snap.LargeTotal), share, format.Money(snap.SmoothedFinal)),
			Value: &share,
		})
	}

	if snap.NegativeCount > 0 {
		n := float64(snap.NegativeCount)
		out = append(out, Insight{
			Key:   "glitches",
			Level: "warning",
			Title: fmt.Sprintf("%d drops in the total", snap.NegativeCount),
			Detail: fmt.Sprintf(
				"The cumulative total went down %d times. A fundraising total should only grow, "+
					"so these are most likely page glitches or corrections. They are kept in the "+
					"regular total and never counted as donations.",
				snap.NegativeCount),
			Value: &n,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return levelRank[out[i].Level] < levelRank[out[j].Level]
	})
	return out
}

func paceInsight(snap *types.Snapshot) (Insight, bool) {
	if snap.State == analysis.StateUnknown || snap.State == "" {
		return Insight{}, false
	}
	pct := snap.PacePct
	needed := ""
	if snap.Remaining > 0 && snap.DaysLeft > 0 {
		needed = fmt.Sprintf(" Reaching the goal needs about %s per day.", format.MoneyWhole(snap.Remaining/snap.DaysLeft))
	}
	detail := fmt.Sprintf("The total of %s is %.1f%% of the target line's %s, with %.1f days left.%s",
		format.Money(snap.Amount), pct, format.Money(snap.Target), snap.DaysLeft, needed)

	hint := Insight{Key: "pace", Detail: detail, Value: &pct}
	switch snap.State {
	case analysis.StateAhead:
		hint.Level, hint.Title = "ok", "Ahead of pace"
	case analysis.StateOnTrack:
		hint.Level, hint.Title = "info", "On track"
	default:
		hint.Level, hint.Title = "warning", "Behind pace"
	}
	return hint, true
}
