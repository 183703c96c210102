// Package handler provides HTTP handlers for the Fletcher Signer API.
package handler

import (
	"net"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/fletcher-signer/internal/ratelimit"
)

// APIKeyHeader is the request header carrying the client API key.
const APIKeyHeader = "X-API-Key"

// APIKeyMiddleware checks the X-API-Key header against the configured
// bcrypt hashes. Keys are never stored or compared in plaintext.
func APIKeyMiddleware(hashes []string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				writeDetailError(w, http.StatusUnauthorized, "missing API key")
				return
			}

			for _, hash := range hashes {
				if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn().Str("remote", r.RemoteAddr).Msg("rejected invalid API key")
			writeDetailError(w, http.StatusUnauthorized, "invalid API key")
		})
	}
}

// RateLimitMiddleware limits requests per client IP. Limiter errors fail
// open: a broken Redis must not take the signing endpoint down with it.
func RateLimitMiddleware(limiter ratelimit.Limiter, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), ratelimit.Keys.ClientIP(clientIP(r)))
			if err != nil {
				logger.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeDetailError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodyMiddleware caps request body size.
func MaxBodyMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP from the request, preferring the last
// untrusted hop's address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
