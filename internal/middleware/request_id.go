package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestID tags every request with an id, honoring one supplied by the
// caller. The id is echoed in the response and carried on the request so the
// logger can correlate lines.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		r.Header.Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r)
	})
}
