package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dvcrn/fetchbridge/internal/env"
	"github.com/dvcrn/fetchbridge/internal/logger"
)

// apiKeyMiddleware guards relay endpoints when FETCH_PROXY_API_KEY is set.
// The key is accepted from 'Authorization: Bearer <key>' or 'X-API-Key: <key>'.
// Both headers are stripped before the request is relayed.
func (s *Server) apiKeyMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey, ok := env.Get("FETCH_PROXY_API_KEY")
		if !ok {
			next(w, r)
			return
		}

		log := logger.Get().With().
			Str("request_id", requestID(r.Context())).
			Str("method", r.Method).
			Str("remote_addr", r.RemoteAddr).
			Logger()

		var providedToken string
		authHeader := r.Header.Get("Authorization")
		xAPIKeyHeader := r.Header.Get("X-API-Key")

		if authHeader != "" {
			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				log.Warn().Msg("Invalid Authorization header format")
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format", nil)
				return
			}
			providedToken = token
		} else if xAPIKeyHeader != "" {
			providedToken = xAPIKeyHeader
		} else {
			log.Warn().Msg("Missing Authorization or X-API-Key header")
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		if subtle.ConstantTimeCompare([]byte(providedToken), []byte(apiKey)) != 1 {
			log.Warn().Msg("Invalid API key provided")
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}

		r.Header.Del("Authorization")
		r.Header.Del("X-API-Key")
		next(w, r)
	}
}
