package types

import "time"

// Sample is one observation of a cumulative total.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Amount    float64   `json:"amount"`
}

// Observation is a Sample tagged with the source it was scraped from.
// It is the unit the agent ships to external sinks.
type Observation struct {
	SourceID string `json:"source_id"`
	Sample
}

// LargeEvent is one increment classified as a large donation.
type LargeEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Increment float64   `json:"increment"`
}

// SeriesPoint is one row of the derived series, used for charts.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Amount    float64   `json:"amount"`
	Smoothed  float64   `json:"smoothed"`
	Increment float64   `json:"increment"`
	Large     bool      `json:"large"`
}

// Goal is a fundraising target: Amount to be reached between Start and End.
type Goal struct {
	Amount float64   `json:"amount"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Snapshot is the server-side view of one tracked source, rebuilt every
// time the source's progress log changes.
type Snapshot struct {
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	PageURL  string `json:"page_url,omitempty"`

	// Latest sample in the log.
	Amount      float64   `json:"amount"`
	LastSample  time.Time `json:"last_sample"`
	SampleCount int       `json:"sample_count"`

	Goal      Goal    `json:"goal"`
	Target    float64 `json:"target"`
	PacePct   float64 `json:"pace_pct"`
	Remaining float64 `json:"remaining"`
	DaysLeft  float64 `json:"days_left"`
	State     string  `json:"state"`

	LastIncrement   float64 `json:"last_increment"`
	MeanIncrement   float64 `json:"mean_increment"`
	MedianIncrement float64 `json:"median_increment"`
	P95Increment    float64 `json:"p95_increment"`
	P99Increment    float64 `json:"p99_increment"`
	Threshold       float64 `json:"threshold"`

	LargeEvents   []LargeEvent  `json:"large_events"`
	LargeTotal    float64       `json:"large_total"`
	RegularTotal  float64       `json:"regular_total"`
	SmoothedFinal float64       `json:"smoothed_final"`
	NegativeCount int           `json:"negative_count"`
	Insufficient  bool          `json:"insufficient_data"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	Series        []SeriesPoint `json:"-"`
	Histogram     []Bin         `json:"-"`
}

// Bin is one bucket of the donation-size histogram.
type Bin struct {
	Label string  `json:"label"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"-"` // +Inf for the last bin; not JSON-encodable
	Count int     `json:"count"`
	Total float64 `json:"total"`
}
