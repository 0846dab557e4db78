package httpclient

import "net/http"

// HTTPClient abstracts a single HTTP exchange. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// roundTripper adapts an HTTPClient to http.RoundTripper so the engine can
// install its own redirect policy on top of any client.
type roundTripper struct {
	client HTTPClient
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.client.Do(req)
}

// FromClient wraps client as a round tripper. The client must not follow
// redirects itself, otherwise intermediate hops are invisible to the caller.
func FromClient(client HTTPClient) http.RoundTripper {
	return roundTripper{client: client}
}
