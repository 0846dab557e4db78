package fetch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dvcrn/fetchbridge/internal/engine"
	"github.com/rs/zerolog"
)

const maxRedirects = 20

func (c *Client) fetchNetwork(ctx context.Context, req *Request, log zerolog.Logger) (*Response, error) {
	lines, size, err := headerLines(req.Header, log)
	if err != nil {
		return nil, err
	}

	opts := &engine.Options{
		CustomRequest:        req.Method,
		HTTPHeader:           lines,
		FollowLocation:       req.Redirect == RedirectModeFollow,
		MaxRedirs:            maxRedirects,
		DecodeContent:        true,
		AcceptEncoding:       "",
		StreamResponse:       true,
		TransferEncoding:     false,
		HTTPTransferDecoding: true,
	}
	if req.Body != nil {
		in, err := bodyStream(req.Body)
		if err != nil {
			return nil, err
		}
		opts.Upload = true
		opts.InFile = in
		opts.InFileSize = size
	}

	if signal := req.Signal; signal != nil {
		var handle atomic.Pointer[engine.Handle]
		signal.OnAbort(func() {
			if h := handle.Load(); h != nil {
				h.Pause(engine.PauseRecv)
			}
		})
		opts.XferInfoFunction = func(h *engine.Handle, _, _, _, _ int64) int {
			handle.CompareAndSwap(nil, h)
			if signal.Aborted() {
				return 1
			}
			return 0
		}
	}

	result, err := c.transport().Request(ctx, req.URL, opts)
	if err != nil {
		if errors.Is(err, engine.ErrAbortedByCallback) {
			log.Debug().Msg("Request aborted before response")
			return nil, abortError(req.Signal)
		}
		return nil, fmt.Errorf("fetch: %s %s: %w", req.Method, req.URL, err)
	}

	header := NewHeaders()
	for _, block := range result.Headers {
		for _, f := range block {
			if f.Name == engine.ResultKey {
				continue
			}
			if req.Redirect == RedirectModeError && strings.EqualFold(f.Name, "location") {
				result.Body.Close()
				log.Debug().Str("location", f.Value).Msg("Redirect forbidden")
				return nil, &RedirectError{URL: req.URL, Location: f.Value}
			}
			header.Append(f.Name, f.Value)
		}
	}

	log.Debug().Int("status", result.StatusCode).Int("blocks", len(result.Headers)).Msg("Response headers received")

	return &Response{
		Status:     result.StatusCode,
		StatusText: result.Reason,
		Header:     header,
		Body:       &responseBody{src: result.Body},
		URL:        req.URL,
	}, nil
}

// headerLines serializes h for the engine and extracts the content-length
// upload hint. Empty values use the "Name;" form so they are sent rather
// than removed.
func headerLines(h *Headers, log zerolog.Logger) ([]string, *int64, error) {
	lines := make([]string, 0, h.Len())
	var size *int64
	for name, value := range h.All() {
		if !validHeaderName(name) {
			return nil, nil, fmt.Errorf("fetch: invalid header name %q", name)
		}
		if strings.ContainsAny(value, "\r\n\x00") {
			return nil, nil, fmt.Errorf("fetch: invalid value for header %q", name)
		}

		value = strings.TrimSpace(value)
		if value == "" {
			lines = append(lines, name+";")
			continue
		}
		lines = append(lines, name+": "+value)

		if strings.EqualFold(name, "content-length") {
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				log.Warn().Str("value", value).Msg("Ignoring unparsable content-length")
				continue
			}
			size = &n
		}
	}
	return lines, size, nil
}

// validHeaderName reports whether name is an RFC 7230 token.
func validHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case strings.IndexByte("!#$%&'*+-.^_`|~", c) >= 0:
		default:
			return false
		}
	}
	return true
}
