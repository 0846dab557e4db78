package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted is returned when a signal aborts a dispatch before the
	// response headers arrived. It is also the default abort reason.
	ErrAborted = errors.New("fetch: request aborted")

	// ErrTimeout is the reason of signals created by TimeoutSignal.
	ErrTimeout = errors.New("fetch: signal timed out")

	// ErrUnsupportedBody is returned for request bodies of an unknown type.
	ErrUnsupportedBody = errors.New("fetch: unsupported body type")

	// ErrBodyNotAllowed is returned for GET and HEAD requests with a body.
	ErrBodyNotAllowed = errors.New("fetch: request with GET/HEAD method cannot have body")
)

// RedirectError is returned when a request with RedirectModeError receives
// a redirect. No Response is produced.
type RedirectError struct {
	URL      string
	Location string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("fetch: redirect to %q forbidden for %s", e.Location, e.URL)
}

// abortError maps an abort during dispatch to ErrAborted, keeping the
// signal's own reason in the chain.
func abortError(s *AbortSignal) error {
	if s == nil {
		return ErrAborted
	}
	reason := s.Reason()
	if reason == nil || errors.Is(reason, ErrAborted) {
		return ErrAborted
	}
	return fmt.Errorf("%w: %w", ErrAborted, reason)
}
