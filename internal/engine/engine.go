package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/dvcrn/fetchbridge/internal/httpclient"
	"github.com/dvcrn/fetchbridge/internal/logger"
	"github.com/rs/zerolog"
)

const defaultProgressInterval = 100 * time.Millisecond

// Engine performs HTTP transfers with curl-like options on top of an
// http.RoundTripper. It is safe for concurrent use; every Request owns its
// own state.
type Engine struct {
	transport        http.RoundTripper
	progressInterval time.Duration
	log              zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithProgressInterval sets the default progress callback interval.
func WithProgressInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.progressInterval = d
		}
	}
}

// WithLogger replaces the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// New creates an engine. A nil rt uses httpclient.NewTransport.
func New(rt http.RoundTripper, opts ...Option) *Engine {
	if rt == nil {
		rt = httpclient.NewTransport()
	}
	e := &Engine{
		transport:        rt,
		progressInterval: defaultProgressInterval,
		log:              logger.Component("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is what Request hands back once response headers are in.
type Result struct {
	StatusCode int
	Reason     string
	// Headers holds one block per received response, redirects included.
	Headers []HeaderBlock
	// EffectiveURL is the URL of the last request made.
	EffectiveURL string
	// Body streams the response and is backed by the transfer's *Handle.
	// It must be closed.
	Body io.ReadCloser
}

// Request starts a transfer and returns when the final response headers have
// been received. The body keeps streaming through Result.Body.
func (e *Engine) Request(ctx context.Context, rawURL string, o *Options) (*Result, error) {
	if o == nil {
		return nil, &Error{Code: CodeBadFunctionArgument, Err: errors.New("nil options")}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	u, err := parseTarget(rawURL)
	if err != nil {
		closeInFile(o)
		return nil, err
	}

	var ultotal int64
	if o.InFileSize != nil {
		ultotal = *o.InFileSize
	}

	ctx, cancel := context.WithCancel(ctx)
	h := newHandle(cancel, o.XferInfoFunction, ultotal)

	req, err := e.newRequest(ctx, h, u, o)
	if err != nil {
		closeInFile(o)
		h.finish()
		return nil, err
	}

	var blocks []HeaderBlock
	client := &http.Client{
		Transport: e.transport,
		CheckRedirect: func(next *http.Request, via []*http.Request) error {
			if !o.FollowLocation {
				return http.ErrUseLastResponse
			}
			if o.MaxRedirs >= 0 && len(via) > o.MaxRedirs {
				return &Error{Code: CodeTooManyRedirects}
			}
			if next.Response != nil {
				blocks = append(blocks, blockFromResponse(next.Response))
			}
			e.log.Debug().Str("location", next.URL.String()).Int("hop", len(via)).Msg("Following redirect")
			return nil
		},
	}

	// The first tick runs before anything is sent so an abort requested
	// ahead of time never reaches the network.
	if err := h.progress(); err != nil {
		closeInFile(o)
		h.finish()
		return nil, err
	}
	interval := e.progressInterval
	if o.ProgressInterval > 0 {
		interval = o.ProgressInterval
	}
	go h.tick(interval)

	resp, err := client.Do(req)
	if err != nil {
		h.finish()
		if ferr := h.failure(); ferr != nil {
			return nil, ferr
		}
		return nil, classify(err)
	}

	blocks = append(blocks, blockFromResponse(resp))
	if resp.ContentLength > 0 {
		h.dltotal.Store(resp.ContentLength)
	}

	body := &countingReader{h: h, src: resp.Body}
	h.body = body
	if o.DecodeContent {
		h.body = newDecodedBody(body, resp.Header.Get("Content-Encoding"))
	}

	e.log.Debug().
		Str("method", req.Method).
		Str("url", u.String()).
		Int("status", resp.StatusCode).
		Int("blocks", len(blocks)).
		Msg("Transfer headers received")

	return &Result{
		StatusCode:   resp.StatusCode,
		Reason:       reason(resp),
		Headers:      blocks,
		EffectiveURL: resp.Request.URL.String(),
		Body:         h,
	}, nil
}

func (e *Engine) newRequest(ctx context.Context, h *Handle, u *url.URL, o *Options) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, o.method(), u.String(), nil)
	if err != nil {
		return nil, &Error{Code: CodeURLMalformat, Err: err}
	}

	if o.Upload {
		req.Body = &uploadReader{h: h, src: o.InFile}
		req.ContentLength = -1
		if o.InFileSize != nil {
			req.ContentLength = *o.InFileSize
			if req.ContentLength == 0 {
				closeInFile(o)
				req.Body = http.NoBody
			}
		}
	}

	removed, err := applyHeaderLines(req, o.HTTPHeader)
	if err != nil {
		return nil, err
	}
	if o.DecodeContent && !removed["Accept-Encoding"] && req.Header.Get("Accept-Encoding") == "" {
		accept := o.AcceptEncoding
		if accept == "" {
			accept = supportedEncodings
		}
		req.Header.Set("Accept-Encoding", accept)
	}
	return req, nil
}

func parseTarget(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Code: CodeURLMalformat, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &Error{Code: CodeUnsupportedProtocol, Err: errors.New("scheme " + u.Scheme)}
	}
	if u.Host == "" {
		return nil, &Error{Code: CodeURLMalformat, Err: errors.New("missing host")}
	}
	return u, nil
}

func closeInFile(o *Options) {
	if c, ok := o.InFile.(io.Closer); ok && o.Upload {
		c.Close()
	}
}

func classify(err error) error {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeOperationTimedout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &Error{Code: CodeCouldntConnect, Err: err}
	}
	return &Error{Code: CodeSendError, Err: err}
}
