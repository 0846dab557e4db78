package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dvcrn/fetchbridge/fetch"
	"github.com/dvcrn/fetchbridge/internal/logger"
)

// RedirectHeader selects the redirect mode of a relayed request.
const RedirectHeader = "X-Fetch-Redirect"

// hopHeaders are connection-scoped and never relayed (RFC 7230 section 6.1).
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// fetchHandler handles /fetch?url=<target> for any method
func (s *Server) fetchHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.Get().With().Str("request_id", requestID(r.Context())).Logger()

	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter", nil)
		return
	}
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be an absolute http or https URL", nil)
		return
	}

	mode := fetch.RedirectMode(strings.ToLower(r.Header.Get(RedirectHeader)))
	switch mode {
	case "", fetch.RedirectModeFollow, fetch.RedirectModeManual, fetch.RedirectModeError:
	default:
		writeError(w, http.StatusBadRequest, "invalid "+RedirectHeader+" value", nil)
		return
	}

	init := &fetch.RequestInit{
		Method:   r.Method,
		Header:   relayRequestHeaders(r),
		Redirect: mode,
		// Disconnects abort through the signal only.
		Signal: fetch.SignalFromContext(r.Context()),
	}
	if hasBody(r) {
		init.Body = r.Body
	}

	res, err := s.client.Fetch(context.WithoutCancel(r.Context()), target, init)
	if err != nil {
		var redirectErr *fetch.RedirectError
		switch {
		case errors.As(err, &redirectErr):
			log.Info().Str("location", redirectErr.Location).Msg("Upstream redirect refused")
			writeError(w, http.StatusBadGateway, "redirect forbidden", map[string]interface{}{
				"location": redirectErr.Location,
			})
		case errors.Is(err, fetch.ErrAborted):
			log.Info().Msg("Client went away before upstream responded")
		case errors.Is(err, fetch.ErrBodyNotAllowed), errors.Is(err, fetch.ErrUnsupportedBody):
			writeError(w, http.StatusBadRequest, err.Error(), nil)
		default:
			log.Error().Err(err).Str("target", target).Msg("Upstream request failed")
			writeError(w, http.StatusBadGateway, err.Error(), nil)
		}
		return
	}
	defer res.Body.Close()

	copyResponseHeaders(w.Header(), res.Header, res.Status)
	w.WriteHeader(res.Status)

	n, err := stream(w, res.Body)
	if err != nil {
		log.Warn().Err(err).Int64("bytes", n).Msg("Relay stream ended with error")
		return
	}
	log.Debug().Int("status", res.Status).Int64("bytes", n).Msg("Relay complete")
}

func hasBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return false
	}
	return r.Method != http.MethodGet && r.Method != http.MethodHead
}

// relayRequestHeaders copies the inbound headers minus hop-by-hop fields,
// Host and the proxy's own controls. A known body size is passed on as
// content-length.
func relayRequestHeaders(r *http.Request) *fetch.Headers {
	h := r.Header.Clone()
	removeHopHeaders(h)
	h.Del("Host")
	h.Del("Content-Length")
	h.Del(RedirectHeader)
	h.Del(requestIDHeader)

	out := fetch.HeadersFromHTTP(h)
	if hasBody(r) && r.ContentLength > 0 {
		out.Set("Content-Length", strconv.FormatInt(r.ContentLength, 10))
	}
	return out
}

// singletonHeaders hold one value per message. When redirects were followed
// the assembled headers repeat them per hop and the last hop wins.
var singletonHeaders = map[string]bool{
	"Age":                 true,
	"Content-Disposition": true,
	"Content-Location":    true,
	"Content-Type":        true,
	"Date":                true,
	"Etag":                true,
	"Expires":             true,
	"Last-Modified":       true,
	"Location":            true,
	"Retry-After":         true,
	"Server":              true,
}

// copyResponseHeaders relays upstream headers. The body is already decoded,
// so the upstream encoding and length no longer apply.
func copyResponseHeaders(to http.Header, from *fetch.Headers, status int) {
	for name, value := range from.All() {
		if singletonHeaders[http.CanonicalHeaderKey(name)] {
			to.Set(name, value)
			continue
		}
		to.Add(name, value)
	}
	removeHopHeaders(to)
	to.Del("Content-Encoding")
	to.Del("Content-Length")
	if status < 300 || status > 399 {
		to.Del("Location")
	}
}

func removeHopHeaders(h http.Header) {
	for _, f := range h.Values("Connection") {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// stream copies body to w, flushing after every chunk
func stream(w http.ResponseWriter, body io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, err := body.Read(buf)
		if n > 0 {
			written, werr := w.Write(buf[:n])
			total += int64(written)
			if werr != nil {
				return total, werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
