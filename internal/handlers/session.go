package handlers

import (
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/oakmart/checkout/internal/platform/requestctx"
)

// SessionHeader carries the opaque checkout session identifier. Browsers
// replay the value; a request without one is minted a fresh session.
const SessionHeader = "X-Checkout-Session"

const maxSessionIDLength = 64

type sessionConfig struct {
	mintID func() string
}

// SessionOption customises the session middleware.
type SessionOption func(*sessionConfig)

// WithSessionIDGenerator overrides the identifier generator, primarily for testing.
func WithSessionIDGenerator(gen func() string) SessionOption {
	return func(cfg *sessionConfig) {
		if gen != nil {
			cfg.mintID = gen
		}
	}
}

// SessionMiddleware resolves the checkout session identifier for the
// request, minting one when absent, and echoes it on the response so the
// storefront can persist it.
func SessionMiddleware(opts ...SessionOption) func(http.Handler) http.Handler {
	cfg := sessionConfig{
		mintID: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
			if sessionID == "" || len(sessionID) > maxSessionIDLength {
				sessionID = cfg.mintID()
			}

			w.Header().Set(SessionHeader, sessionID)
			next.ServeHTTP(w, r.WithContext(requestctx.WithSessionID(r.Context(), sessionID)))
		})
	}
}
