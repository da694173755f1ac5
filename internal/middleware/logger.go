package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Logger writes one structured line per request. RealIP runs earlier in the
// chain, so RemoteAddr already holds the client address.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Str("ip", r.RemoteAddr).
			Str("request_id", r.Header.Get("X-Request-ID")).
			Msg("http request")
	})
}

// responseWriter captures the status code for the log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
