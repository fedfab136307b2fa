// Package barrier waits, with a fixed ceiling, for a shared collection to
// reach a target size.
package barrier

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/randomizedcoder/go-node-harness/internal/metrics"
)

const (
	// DefaultCeiling is how long AwaitMessages waits before giving up.
	DefaultCeiling = 1000 * time.Millisecond

	// DefaultInterval is the sleep between polls.
	DefaultInterval = 50 * time.Millisecond
)

// ErrBarrierTimeout is wrapped by the error AwaitMessages returns when the
// ceiling passes before the target is reached.
var ErrBarrierTimeout = errors.New("barrier timeout")

// Lener is anything with a length that is safe to read concurrently.
// *Buffer satisfies it.
type Lener interface {
	Len() int
}

// TimeoutError describes a barrier that was not reached in time.
type TimeoutError struct {
	Elapsed  time.Duration
	Ceiling  time.Duration
	Received int
	Expected int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("after %dms (ceiling %dms), message collector has received only %d messages, not %d",
		e.Elapsed.Milliseconds(), e.Ceiling.Milliseconds(), e.Received, e.Expected)
}

// Unwrap lets errors.Is match ErrBarrierTimeout.
func (e *TimeoutError) Unwrap() error {
	return ErrBarrierTimeout
}

type options struct {
	ceiling   time.Duration
	interval  time.Duration
	logger    *slog.Logger
	collector *metrics.Collector
}

// Option customizes AwaitMessages.
type Option func(*options)

// WithCeiling overrides DefaultCeiling.
func WithCeiling(d time.Duration) Option {
	return func(o *options) { o.ceiling = d }
}

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithLogger sets the logger that receives progress observations.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records barrier timeouts on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// AwaitMessages polls buf until its length is at least target. Each time the
// observed length changes a message_collector_progress event is logged. If
// the ceiling elapses first a *TimeoutError is returned.
func AwaitMessages(target int, buf Lener, opts ...Option) error {
	o := options{
		ceiling:  DefaultCeiling,
		interval: DefaultInterval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}

	prev := 0
	begin := time.Now()
	for {
		cur := buf.Len()
		if cur != prev {
			o.logger.Info("message_collector_progress", "received", cur, "expected", target)
		}
		prev = cur

		if cur >= target {
			return nil
		}

		elapsed := time.Since(begin)
		if elapsed > o.ceiling {
			o.collector.RecordTimeout(metrics.TimeoutBarrier)
			return &TimeoutError{
				Elapsed:  elapsed,
				Ceiling:  o.ceiling,
				Received: cur,
				Expected: target,
			}
		}

		time.Sleep(o.interval)
	}
}

// MustAwaitMessages is AwaitMessages that fails tb on timeout.
func MustAwaitMessages(tb testing.TB, target int, buf Lener, opts ...Option) {
	tb.Helper()
	if err := AwaitMessages(target, buf, opts...); err != nil {
		tb.Fatalf("%v", err)
	}
}
