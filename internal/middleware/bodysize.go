package middleware

import "net/http"

// DefaultMaxBodySize caps chat and webhook payloads (64KB). A ManyChat
// webhook carries one message, so anything larger is not a real request.
const DefaultMaxBodySize = 64 << 10

// BodySizeLimiter rejects bodies declared larger than maxBytes with a JSON 413
// and caps undeclared (chunked) bodies while they are read.
func BodySizeLimiter(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Body == nil || r.Body == http.NoBody:
			case r.ContentLength > maxBytes:
				writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			default:
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
