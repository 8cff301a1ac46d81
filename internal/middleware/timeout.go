package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout caps request handling when no timeout is configured.
const DefaultRequestTimeout = 30 * time.Second

// Timeout bounds each request: the context is cancelled and the response
// is cut off once the deadline passes. Verification calls inherit the
// deadline through the request context.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			handler := http.TimeoutHandler(next, timeout, "Request Timeout")
			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
