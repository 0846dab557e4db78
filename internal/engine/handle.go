package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// PauseFlags select which direction of a transfer is paused.
type PauseFlags int

const (
	PauseRecv PauseFlags = 1 << 0
	PauseSend PauseFlags = 1 << 2
	PauseAll             = PauseRecv | PauseSend
	PauseCont PauseFlags = 0
)

// ErrBodyClosed is returned by reads after the body was closed.
var ErrBodyClosed = errors.New("engine: read on closed body")

// Handle is the live state of one transfer. It is handed to the progress
// callback and doubles as the response body stream.
type Handle struct {
	mu      sync.Mutex
	paused  PauseFlags
	err     error
	changed chan struct{}

	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once

	cbMu    sync.Mutex
	xfer    XferInfoFunc
	dltotal atomic.Int64
	dlnow   atomic.Int64
	ultotal int64
	ulnow   atomic.Int64

	body io.ReadCloser
}

func newHandle(cancel context.CancelFunc, xfer XferInfoFunc, ultotal int64) *Handle {
	return &Handle{
		changed: make(chan struct{}),
		cancel:  cancel,
		done:    make(chan struct{}),
		xfer:    xfer,
		ultotal: ultotal,
	}
}

// Pause changes the paused directions. PauseCont resumes everything.
func (h *Handle) Pause(flags PauseFlags) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.paused = flags
	h.broadcast()
	return nil
}

// Paused reports the currently paused directions.
func (h *Handle) Paused() PauseFlags {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused
}

// broadcast wakes every waiter. Callers hold h.mu.
func (h *Handle) broadcast() {
	close(h.changed)
	h.changed = make(chan struct{})
}

// fail ends the transfer with err unless it already ended.
func (h *Handle) fail(err error) {
	h.mu.Lock()
	if h.err == nil {
		h.err = err
		h.broadcast()
	}
	h.mu.Unlock()
	h.cancel()
}

func (h *Handle) failure() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// wait blocks while dir is paused.
func (h *Handle) wait(dir PauseFlags) error {
	for {
		h.mu.Lock()
		if h.err != nil {
			err := h.err
			h.mu.Unlock()
			return err
		}
		if h.paused&dir == 0 {
			h.mu.Unlock()
			return nil
		}
		ch := h.changed
		h.mu.Unlock()
		<-ch
	}
}

// progress invokes the callback once. Calls are serialized.
func (h *Handle) progress() error {
	if h.xfer == nil {
		return h.failure()
	}
	h.cbMu.Lock()
	rc := h.xfer(h, h.dltotal.Load(), h.dlnow.Load(), h.ultotal, h.ulnow.Load())
	h.cbMu.Unlock()
	if rc != 0 {
		h.fail(&Error{Code: CodeAbortedByCallback})
	}
	return h.failure()
}

// tick polls the callback every interval until the transfer is finished.
func (h *Handle) tick(interval time.Duration) {
	if h.xfer == nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-t.C:
			h.progress()
		}
	}
}

func (h *Handle) finish() {
	h.doneOnce.Do(func() {
		close(h.done)
		h.cancel()
	})
}

// Read implements io.Reader over the response body.
func (h *Handle) Read(p []byte) (int, error) {
	if err := h.wait(PauseRecv); err != nil {
		return 0, err
	}
	n, err := h.body.Read(p)
	if n > 0 {
		h.progress()
	}
	switch {
	case err == io.EOF:
		h.finish()
	case err != nil:
		if ferr := h.failure(); ferr != nil {
			err = ferr
		} else if CodeOf(err) == CodeOK {
			err = &Error{Code: CodeRecvError, Err: err}
		}
		h.fail(err)
		h.finish()
	}
	return n, err
}

// Close releases the transfer. Pending and later reads fail with ErrBodyClosed.
func (h *Handle) Close() error {
	h.fail(ErrBodyClosed)
	err := h.body.Close()
	h.finish()
	return err
}

// uploadReader feeds the request body, honouring PauseSend and aborts.
// Closing it closes the source when the source is an io.Closer.
type uploadReader struct {
	h   *Handle
	src io.Reader
}

func (u *uploadReader) Read(p []byte) (int, error) {
	if err := u.h.wait(PauseSend); err != nil {
		return 0, err
	}
	n, err := u.src.Read(p)
	u.h.ulnow.Add(int64(n))
	if n > 0 {
		if perr := u.h.progress(); perr != nil && err == nil {
			err = perr
		}
	}
	return n, err
}

func (u *uploadReader) Close() error {
	if c, ok := u.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// countingReader tracks received bytes before content decoding.
type countingReader struct {
	h   *Handle
	src io.ReadCloser
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.src.Read(p)
	c.h.dlnow.Add(int64(n))
	return n, err
}

func (c *countingReader) Close() error { return c.src.Close() }
