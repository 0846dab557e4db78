//go:build !js || !wasm

package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewTransport creates the round tripper used by the transport engine in
// regular environments.
func NewTransport() http.RoundTripper {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// The engine negotiates and decodes content encodings itself.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}
}
