package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/waterworm/waterworm/pkg/analysis"
	"github.com/waterworm/waterworm/pkg/format"
	"github.com/waterworm/waterworm/pkg/types"
)

// evalCondition evaluates a rule condition string against a Snapshot.
//
// Supported expressions (field operator value):
//
//	amount > 1000000
//	pace_pct < 90
//	last_increment < 0
//	large_count >= 3
//	threshold > 5000
//	days_left < 3
//	remaining > 0
//	negative_count > 0
//	state == behind
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed, the field is
// unknown, or the field needs statistics the snapshot does not have.
func evalCondition(cond string, snap *types.Snapshot) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "state" {
		switch op {
		case "==":
			return snap.State == rhs, 0
		case "!=":
			return snap.State != rhs, 0
		}
		return false, 0
	}

	v, ok := numericField(field, snap)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericFields lists the fields a numeric condition may reference.
var numericFields = map[string]bool{
	"amount":         true,
	"pace_pct":       true,
	"remaining":      true,
	"days_left":      true,
	"last_increment": true,
	"negative_count": true,
	"large_count":    true,
	"threshold":      true,
}

var operators = map[string]bool{">": true, ">=": true, "<": true, "<=": true, "==": true, "!=": true}

// validCondition reports whether cond parses into a known field and operator.
func validCondition(cond string) bool {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false
	}
	if parts[0] == "state" {
		return parts[1] == "==" || parts[1] == "!="
	}
	if !numericFields[parts[0]] || !operators[parts[1]] {
		return false
	}
	_, err := strconv.ParseFloat(parts[2], 64)
	return err == nil
}

// numericField maps a field name to its value in the snapshot. Statistics
// derived from increments are unavailable while data is insufficient, and
// goal fields are unavailable for sources without a goal.
func numericField(field string, snap *types.Snapshot) (float64, bool) {
	switch field {
	case "amount":
		return snap.Amount, true
	case "pace_pct":
		return snap.PacePct, snap.Target > 0
	case "remaining":
		return snap.Remaining, analysis.HasGoal(snap.Goal)
	case "days_left":
		return snap.DaysLeft, analysis.HasGoal(snap.Goal)
	case "last_increment":
		return snap.LastIncrement, snap.SampleCount > 1
	case "negative_count":
		return float64(snap.NegativeCount), true
	case "large_count":
		return float64(len(snap.LargeEvents)), !snap.Insufficient
	case "threshold":
		return snap.Threshold, !snap.Insufficient
	}
	return 0, false
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}

// describe renders the alert message, showing the triggering value in the
// unit of the condition's field.
func describe(rule, sourceID, cond string, v float64) string {
	field := strings.Fields(cond)[0]
	var shown string
	switch field {
	case "state":
		return fmt.Sprintf("%s on %s: %s", rule, sourceID, cond)
	case "amount", "remaining", "last_increment", "threshold":
		shown = format.Money(v)
	case "pace_pct":
		shown = fmt.Sprintf("%.1f%%", v)
	case "days_left":
		shown = fmt.Sprintf("%.1f days", v)
	default:
		shown = fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%s on %s: %s (now %s)", rule, sourceID, cond, shown)
}
