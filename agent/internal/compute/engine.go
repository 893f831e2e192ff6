package compute

import (
	"log/slog"
	"sync"
	"time"

	"github.com/waterworm/waterworm/agent/internal/scraper"
	"github.com/waterworm/waterworm/pkg/analysis"
	"github.com/waterworm/waterworm/pkg/types"
)

// uptimeWindow is the number of recent scrape outcomes tracked for uptime %.
const uptimeWindow = 20

// Live large-increment detection uses the last historyWindow positive
// increments and needs at least minHistory of them.
const (
	historyWindow = 500
	minHistory    = 20
)

// Source states.
const (
	StateUnknown   = "unknown"
	StateRising    = "rising"
	StateFlat      = "flat"
	StateRegressed = "regressed"
)

// MsgZeroTotal is the ErrorMessage of a scrape that succeeded but read a
// total of zero.
const MsgZeroTotal = "zero total"

// Result is the derived view of one reading, ready for metrics and sinks.
type Result struct {
	SourceID   string
	SourceType string
	Timestamp  time.Time
	State      string

	Amount float64

	// Increment is the change since the previous successful reading.
	// Negative values are kept as-is.
	Increment   float64
	RatePerHour float64

	// Large is true when Increment exceeds the 95th percentile of the
	// source's recent positive increments.
	Large     bool
	Threshold float64

	UptimePct    float64
	ErrorMessage string // non-empty when the scrape failed
}

// Engine maintains per-source state across scrape cycles.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu     sync.Mutex
	states map[string]*sourceState
}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]*sourceState)}
}

// Process ingests a Reading and returns the derived Result.
//
// now is passed explicitly so callers (and tests) control the clock without
// sleeping. Use time.Now() in production.
//
// The first successful reading for a source records the baseline and returns
// State "unknown" since there is no increment yet.
func (e *Engine) Process(r *scraper.Reading, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(r.SourceID)
	success := r.OK()
	st.recordScrape(success)

	out := &Result{
		SourceID:   r.SourceID,
		SourceType: r.SourceType,
		Timestamp:  now,
		UptimePct:  st.uptimePct(),
	}

	if !success {
		out.State = StateUnknown
		switch {
		case r.Err != nil:
			out.ErrorMessage = r.Err.Error()
			slog.Warn("compute: scrape failed, marking unknown", "source", r.SourceID, "err", r.Err)
		default:
			out.ErrorMessage = MsgZeroTotal
		}
		out.Amount = st.prevAmount
		return out
	}

	amount := r.Amount.InexactFloat64()
	out.Amount = amount

	if !st.hasBaseline {
		out.State = StateUnknown
		st.updateBaseline(amount, now)
		return out
	}

	out.Increment = amount - st.prevAmount
	hours := now.Sub(st.prevTime).Hours()
	if hours > 0 {
		out.RatePerHour = out.Increment / hours
	}

	switch {
	case out.Increment > 0:
		out.State = StateRising
	case out.Increment < 0:
		out.State = StateRegressed
		slog.Warn("compute: total went down", "source", r.SourceID,
			"previous", st.prevAmount, "current", amount)
	default:
		out.State = StateFlat
	}

	if out.Increment > 0 {
		if len(st.positives) >= minHistory {
			if th, err := analysis.Quantile(st.positives, analysis.ThresholdQuantile); err == nil {
				out.Threshold = th
				out.Large = out.Increment > th
			}
		}
		st.recordPositive(out.Increment)
	}

	st.updateBaseline(amount, now)
	return out
}

// Forget drops state for sources no longer configured.
func (e *Engine) Forget(keep map[string]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.states {
		if !keep[id] {
			delete(e.states, id)
		}
	}
}

// sourceState holds the previous reading and uptime history of one source.
type sourceState struct {
	prevAmount  float64
	prevTime    time.Time
	hasBaseline bool
	history     []bool // scrape outcomes, newest last
	positives   []float64
}

func (e *Engine) stateFor(id string) *sourceState {
	if st, ok := e.states[id]; ok {
		return st
	}
	st := &sourceState{}
	e.states[id] = st
	return st
}

// Seed primes a source from its log, in log order. The last row becomes the
// baseline so the first live reading after a restart already has an
// increment, and the positive increments between rows refill the history
// used for large-increment detection.
func (e *Engine) Seed(sourceID string, samples []types.Sample) {
	if len(samples) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(sourceID)
	last := samples[len(samples)-1]
	st.updateBaseline(last.Amount, last.Timestamp)

	pos := analysis.Positive(analysis.Increments(samples))
	if len(pos) > historyWindow {
		pos = pos[len(pos)-historyWindow:]
	}
	st.positives = append(st.positives[:0], pos...)
}

func (st *sourceState) updateBaseline(amount float64, now time.Time) {
	st.prevAmount = amount
	st.prevTime = now
	st.hasBaseline = true
}

func (st *sourceState) recordScrape(success bool) {
	if len(st.history) >= uptimeWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, success)
}

func (st *sourceState) recordPositive(v float64) {
	if len(st.positives) >= historyWindow {
		st.positives = st.positives[1:]
	}
	st.positives = append(st.positives, v)
}

func (st *sourceState) uptimePct() float64 {
	if len(st.history) == 0 {
		return 100 // assume up before first observation
	}
	var ok int
	for _, s := range st.history {
		if s {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}
