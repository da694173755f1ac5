package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSHandler builds the CORS policy for the portal frontend. Provider
// webhooks are server-to-server and never preflight, so only the browser
// surface is listed here.
func CORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
