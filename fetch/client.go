package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dvcrn/fetchbridge/internal/config"
	"github.com/dvcrn/fetchbridge/internal/engine"
	"github.com/dvcrn/fetchbridge/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// transport is the part of the engine the network handler depends on.
type transport interface {
	Request(ctx context.Context, rawURL string, o *engine.Options) (*engine.Result, error)
}

// Client dispatches requests. The zero value is not usable; use NewClient.
type Client struct {
	baseURL          *url.URL
	roundTripper     http.RoundTripper
	progressInterval time.Duration
	log              zerolog.Logger

	networkOnce sync.Once
	network     transport
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL sets the URL relative string inputs are resolved against.
func WithBaseURL(u *url.URL) ClientOption {
	return func(c *Client) {
		if u != nil {
			c.baseURL = u
		}
	}
}

// WithRoundTripper sets the round tripper used for network requests.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.roundTripper = rt
	}
}

// WithProgressInterval sets how often transfers poll the abort signal.
func WithProgressInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.progressInterval = d
	}
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

func withTransport(t transport) ClientOption {
	return func(c *Client) {
		c.network = t
	}
}

func NewClient(opts ...ClientOption) *Client {
	base, _ := url.Parse(config.DefaultBaseURL)
	c := &Client{
		baseURL:          base,
		progressInterval: config.DefaultProgressInterval,
		log:              logger.Component("fetch"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// transport returns the network engine, creating it on first use.
func (c *Client) transport() transport {
	c.networkOnce.Do(func() {
		if c.network != nil {
			return
		}
		c.network = engine.New(c.roundTripper,
			engine.WithProgressInterval(c.progressInterval),
			engine.WithLogger(c.log),
		)
	})
	return c.network
}

var (
	defaultOnce   sync.Once
	defaultClient *Client
)

// DefaultClient returns the client used by the package-level functions,
// configured from the environment on first use.
func DefaultClient() *Client {
	defaultOnce.Do(func() {
		cfg := config.Load()
		defaultClient = NewClient(
			WithBaseURL(cfg.BaseURL),
			WithProgressInterval(cfg.ProgressInterval),
		)
	})
	return defaultClient
}

// Fetch dispatches input with the default client.
func Fetch(ctx context.Context, input any, init *RequestInit) (*Response, error) {
	return DefaultClient().Fetch(ctx, input, init)
}

// Fetch dispatches a request and returns once its response headers are
// available. data: and file: URLs are served locally; every other scheme goes
// to the network engine. Errors after that point surface from Response.Body.
func (c *Client) Fetch(ctx context.Context, input any, init *RequestInit) (*Response, error) {
	req, err := c.NewRequest(input, init)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch: invalid URL %q: %w", req.URL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	log := c.log.With().
		Str("request_id", uuid.NewString()).
		Str("scheme", scheme).
		Str("method", req.Method).
		Logger()
	log.Debug().Str("url", req.URL).Msg("Dispatching request")

	switch scheme {
	case "data":
		return fetchData(req, log)
	case "file":
		return fetchFile(req, u, log)
	default:
		return c.fetchNetwork(ctx, req, log)
	}
}
