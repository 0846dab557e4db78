//go:build js && wasm

package httpclient

import (
	"net/http"

	"github.com/syumai/workers/cloudflare/fetch"
)

// noFollowInit hands every 3xx back to the caller, which owns the redirect
// policy.
var noFollowInit = &fetch.RequestInit{Redirect: fetch.RedirectModeManual}

// WorkersHTTPClient implements HTTPClient for Cloudflare Workers
type WorkersHTTPClient struct {
	client *fetch.Client
}

// NewTransport creates the round tripper used by the transport engine on
// Cloudflare Workers, backed by the runtime's fetch binding.
func NewTransport() http.RoundTripper {
	return FromClient(&WorkersHTTPClient{
		client: fetch.NewClient(),
	})
}

// Do performs an HTTP request using Cloudflare Workers fetch
func (c *WorkersHTTPClient) Do(req *http.Request) (*http.Response, error) {
	fetchReq, err := fetch.NewRequest(req.Context(), req.Method, req.URL.String(), req.Body)
	if err != nil {
		return nil, err
	}

	for key, values := range req.Header {
		for _, value := range values {
			fetchReq.Header.Add(key, value)
		}
	}
	if req.Host != "" && req.Host != req.URL.Host {
		fetchReq.Header.Set("Host", req.Host)
	}

	return c.client.Do(fetchReq, noFollowInit)
}
