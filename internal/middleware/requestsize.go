package middleware

import (
	"net/http"
)

// DefaultMaxRequestSize bounds request bodies. Proof payloads and start
// code photos are the largest expected bodies; 1MB leaves headroom for a
// base64-encoded image.
const DefaultMaxRequestSize int64 = 1 << 20

// MaxRequestSize rejects oversized bodies early via Content-Length and
// caps streamed reads with MaxBytesReader.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}
