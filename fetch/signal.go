package fetch

import (
	"context"
	"sync"
	"time"
)

// AbortSignal reports whether an operation was cancelled. Once aborted it
// stays aborted.
type AbortSignal struct {
	mu      sync.Mutex
	aborted bool
	reason  error
	onAbort func()
	done    chan struct{}
}

func newAbortSignal() *AbortSignal {
	return &AbortSignal{done: make(chan struct{})}
}

// Aborted reports whether the signal has fired.
func (s *AbortSignal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Reason returns the abort reason, or nil while the signal is live.
func (s *AbortSignal) Reason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Done is closed when the signal aborts.
func (s *AbortSignal) Done() <-chan struct{} {
	return s.done
}

// OnAbort registers the abort callback, replacing any earlier one. The
// callback runs at most once, on the goroutine that aborts the signal. It is
// not invoked when the signal has already aborted.
func (s *AbortSignal) OnAbort(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAbort = fn
}

func (s *AbortSignal) abort(reason error) {
	if reason == nil {
		reason = ErrAborted
	}
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.reason = reason
	fn := s.onAbort
	s.onAbort = nil
	close(s.done)
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// AbortController owns an AbortSignal and is the only way to fire it.
type AbortController struct {
	signal *AbortSignal
}

func NewAbortController() *AbortController {
	return &AbortController{signal: newAbortSignal()}
}

func (c *AbortController) Signal() *AbortSignal {
	return c.signal
}

// Abort fires the signal. A nil reason becomes ErrAborted. Calls after the
// first do nothing.
func (c *AbortController) Abort(reason error) {
	c.signal.abort(reason)
}

// SignalFromContext returns a signal that aborts with context.Cause(ctx)
// once ctx is done.
func SignalFromContext(ctx context.Context) *AbortSignal {
	s := newAbortSignal()
	context.AfterFunc(ctx, func() {
		s.abort(context.Cause(ctx))
	})
	return s
}

// TimeoutSignal returns a signal that aborts with ErrTimeout after d.
func TimeoutSignal(d time.Duration) *AbortSignal {
	s := newAbortSignal()
	time.AfterFunc(d, func() {
		s.abort(ErrTimeout)
	})
	return s
}
