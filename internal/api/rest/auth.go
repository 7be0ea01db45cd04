// Package rest provides the HTTP control API and the WebSocket notification stream.
package rest

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
)

const (
	// TokenQueryParam carries the token for WebSocket clients that cannot set headers.
	TokenQueryParam = "token"
)

var errUnauthenticated = errors.New("unauthenticated")

// NewAuthMiddleware creates a middleware that validates bearer tokens.
// An empty token disables authentication.
func NewAuthMiddleware(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token from header, falling back to the query string
			got := bearerToken(r)
			if got == "" {
				got = r.URL.Query().Get(TokenQueryParam)
			}

			// Validate token
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, errUnauthenticated)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken returns the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
