package fetch

import (
	"fmt"
	"net/url"
	"strings"
)

// RedirectMode selects how redirects are handled.
type RedirectMode string

const (
	RedirectModeFollow RedirectMode = "follow"
	RedirectModeManual RedirectMode = "manual"
	RedirectModeError  RedirectMode = "error"
)

func (m RedirectMode) valid() bool {
	switch m {
	case RedirectModeFollow, RedirectModeManual, RedirectModeError:
		return true
	}
	return false
}

// Request is the canonical form of a dispatch. Use NewRequest or
// (*Client).NewRequest to build one; it must not be modified once passed to
// Fetch.
type Request struct {
	URL    string
	Method string
	Header *Headers
	// Body is nil, an io.Reader, []byte, string, iter.Seq[[]byte] or
	// iter.Seq2[[]byte, error]. An io.Reader that is also an io.Closer is
	// closed once the upload ends.
	Body     any
	Signal   *AbortSignal
	Redirect RedirectMode
}

// RequestInit overrides request fields. Zero fields are left alone.
type RequestInit struct {
	Method   string
	Header   *Headers
	Body     any
	Signal   *AbortSignal
	Redirect RedirectMode
}

// NewRequest normalizes input against the default client's base URL.
func NewRequest(input any, init *RequestInit) (*Request, error) {
	return DefaultClient().NewRequest(input, init)
}

// NewRequest normalizes input into a Request. input is a string, *url.URL,
// url.URL or *Request; relative URLs resolve against the client's base URL.
func (c *Client) NewRequest(input any, init *RequestInit) (*Request, error) {
	var req Request
	switch in := input.(type) {
	case string:
		u, err := c.baseURL.Parse(in)
		if err != nil {
			return nil, fmt.Errorf("fetch: invalid URL %q: %w", in, err)
		}
		req.URL = u.String()
	case *url.URL:
		if in == nil {
			return nil, fmt.Errorf("fetch: nil URL")
		}
		req.URL = c.baseURL.ResolveReference(in).String()
	case url.URL:
		req.URL = c.baseURL.ResolveReference(&in).String()
	case *Request:
		if in == nil {
			return nil, fmt.Errorf("fetch: nil request")
		}
		req = *in
		req.Header = in.Header.Clone()
	default:
		return nil, fmt.Errorf("fetch: unsupported input type %T", input)
	}

	if init != nil {
		if init.Method != "" {
			req.Method = init.Method
		}
		if init.Header != nil {
			req.Header = init.Header.Clone()
		}
		if init.Body != nil {
			req.Body = init.Body
		}
		if init.Signal != nil {
			req.Signal = init.Signal
		}
		if init.Redirect != "" {
			req.Redirect = init.Redirect
		}
	}

	req.Method = normalizeMethod(req.Method)
	if req.Header == nil {
		req.Header = NewHeaders()
	}
	if req.Redirect == "" {
		req.Redirect = RedirectModeFollow
	}
	if !req.Redirect.valid() {
		return nil, fmt.Errorf("fetch: invalid redirect mode %q", req.Redirect)
	}
	if req.Body != nil && (req.Method == "GET" || req.Method == "HEAD") {
		return nil, ErrBodyNotAllowed
	}
	return &req, nil
}

// normalizeMethod upper-cases the standard methods and leaves others as is.
func normalizeMethod(m string) string {
	if m == "" {
		return "GET"
	}
	switch up := strings.ToUpper(m); up {
	case "DELETE", "GET", "HEAD", "OPTIONS", "POST", "PUT":
		return up
	}
	return m
}
