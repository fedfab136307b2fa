// Package rendezvous provides a one-shot signal between two goroutines.
//
// Everything the signaling goroutine does before Signal is visible to the
// waiting goroutine once Wait returns. Dropping the Signaler without
// signaling (Close, or garbage collection) releases the Waiter instead of
// leaving it blocked forever.
package rendezvous

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// link is the state shared by a Signaler/Waiter pair.
type link struct {
	ch       chan struct{}
	once     sync.Once
	signaled atomic.Bool
}

func (l *link) signal() {
	l.once.Do(func() {
		l.signaled.Store(true)
		l.ch <- struct{}{}
		close(l.ch)
	})
}

func (l *link) disconnect() {
	l.once.Do(func() {
		close(l.ch)
	})
}

// Signaler is the sending half.
type Signaler struct {
	link *link
}

// Waiter is the receiving half.
type Waiter struct {
	link *link
}

// New returns a connected Signaler and Waiter.
func New() (*Signaler, *Waiter) {
	l := &link{ch: make(chan struct{}, 1)}
	s := &Signaler{link: l}
	// A Signaler that becomes unreachable counts as dropped.
	runtime.AddCleanup(s, func(l *link) { l.disconnect() }, l)
	return s, &Waiter{link: l}
}

// Signal releases the Waiter. Only the first call has an effect.
func (s *Signaler) Signal() {
	s.link.signal()
}

// Close drops the Signaler. If Signal was never called the Waiter is
// released as if disconnected.
func (s *Signaler) Close() {
	s.link.disconnect()
}

// Wait blocks until the Signaler signals or is dropped.
func (w *Waiter) Wait() {
	<-w.link.ch
}

// WaitContext is Wait with cancellation. It returns ctx.Err() if ctx is done
// first.
func (w *Waiter) WaitContext(ctx context.Context) error {
	select {
	case <-w.link.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signaled reports whether the pair was released by Signal rather than by
// the Signaler being dropped.
func (w *Waiter) Signaled() bool {
	return w.link.signaled.Load()
}
