package security

import (
	"net/http"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// BodyLimit caps request payload size for JSON endpoints.
type BodyLimit struct {
	Max int64
}

// Middleware rejects declared oversized bodies up front and truncates the
// rest so decoding fails once Max is exceeded.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}
