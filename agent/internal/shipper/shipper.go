package shipper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/waterworm/waterworm/agent/internal/compute"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// ErrPermanent marks a write error caused by the record itself. Records
// failing with an error wrapping ErrPermanent are discarded, not retried.
var ErrPermanent = errors.New("shipper: permanent error")

// Sink is a downstream store that receives every successful reading.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Connect opens the connection. It is called again after a Write fails
	// with a transient error.
	Connect(ctx context.Context) error
	Write(ctx context.Context, res *compute.Result) error
	Close() error
}

// Shipper buffers compute.Results and delivers them to one Sink.
// Ship() is non-blocking; when the buffer is full the oldest result is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	sink  Sink
	buf   chan *compute.Result
	sleep func(ctx context.Context, d time.Duration) bool // injectable for tests
}

// New creates a Shipper for sink with room for bufferSize pending results.
func New(sink Sink, bufferSize int) *Shipper {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Shipper{
		sink:  sink,
		buf:   make(chan *compute.Result, bufferSize),
		sleep: sleepCtx,
	}
}

// Name returns the sink name.
func (s *Shipper) Name() string { return s.sink.Name() }

// Pending returns the number of buffered results.
func (s *Shipper) Pending() int { return len(s.buf) }

// Ship enqueues res. If the buffer is full the oldest entry is evicted to
// make room.
func (s *Shipper) Ship(res *compute.Result) {
	select {
	case s.buf <- res:
	default:
		select {
		case <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest reading",
				"sink", s.sink.Name(), "source", res.SourceID, "buffer_cap", cap(s.buf))
		default:
		}
		select {
		case s.buf <- res:
		default:
		}
	}
}

// Run drains the buffer into the sink, reconnecting with exponential backoff
// when the sink fails. Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.sink.Connect(ctx); err != nil {
			wait := bo.next()
			slog.Error("shipper: connect failed, will retry",
				"sink", s.sink.Name(), "err", err, "retry_in", wait)
			if !s.sleep(ctx, wait) {
				return
			}
			continue
		}

		slog.Info("shipper: connected", "sink", s.sink.Name())
		bo.reset()

		err := s.drain(ctx)
		if cerr := s.sink.Close(); cerr != nil {
			slog.Warn("shipper: close failed", "sink", s.sink.Name(), "err", cerr)
		}

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: sink failed, will reconnect",
			"sink", s.sink.Name(), "err", err, "retry_in", wait)
		if !s.sleep(ctx, wait) {
			return
		}
	}
}

// drain writes buffered results until a transient error or ctx cancellation.
func (s *Shipper) drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case res := <-s.buf:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			err := s.sink.Write(sendCtx, res)
			cancel()

			if err == nil {
				slog.Debug("shipper: reading delivered", "sink", s.sink.Name(), "source", res.SourceID)
				continue
			}
			if errors.Is(err, ErrPermanent) {
				slog.Error("shipper: permanent write error, discarding reading",
					"sink", s.sink.Name(), "source", res.SourceID, "err", err)
				continue
			}

			// Requeue if there's room; otherwise the newer readings win.
			select {
			case s.buf <- res:
			default:
			}
			return fmt.Errorf("write: %w", err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
