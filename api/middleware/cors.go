package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
)

// CORS lets the configured browser origins call the API with credentials.
// Retry-After is exposed so clients can honour back-off on 429/503/504.
func CORS(origins []string) func(http.Handler) http.Handler {
	policy := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           int((5 * time.Minute).Seconds()),
	}
	return cors.Handler(policy)
}
