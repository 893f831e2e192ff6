// Package format renders currency amounts and timestamps the way every
// waterworm output (CLI, HTML page, chart axes, alerts) displays them.
package format

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TimeLayout is the timestamp layout used in the progress log and in output.
const TimeLayout = "2006-01-02 15:04:05"

var printer = message.NewPrinter(language.English)

// Money formats v as dollars with two decimals and thousands separators,
// e.g. "$1,234.50" or "-$12.00".
func Money(v float64) string {
	if v < 0 {
		return "-$" + printer.Sprintf("%.2f", -v)
	}
	return "$" + printer.Sprintf("%.2f", v)
}

// MoneyWhole formats v as whole dollars, e.g. "$40,000,000".
func MoneyWhole(v float64) string {
	if v < 0 {
		return "-$" + printer.Sprintf("%.0f", -v)
	}
	return "$" + printer.Sprintf("%.0f", v)
}

// Timestamp formats t in UTC with a trailing zone marker,
// e.g. "2025-08-14 10:20:00 UTC".
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout) + " UTC"
}
