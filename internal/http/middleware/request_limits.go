package middleware

import (
	"net/http"

	"github.com/tendant/simple-idm-otp/internal/httputil"
)

// RequestSizeLimit caps request bodies at maxBytes. Bodies that declare a
// larger Content-Length are refused with 413 before the handler runs; the rest
// are wrapped so that reading past the cap fails and httputil.Decode answers
// 413. A non-positive maxBytes disables the limit.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
