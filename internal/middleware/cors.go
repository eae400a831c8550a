package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS builds the cross-origin policy for the API. An empty origin list
// allows any origin without credentials.
func CORS(allowedOrigins []string) *cors.Cors {
	opts := cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", idempotencyHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         600,
	}
	if len(allowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	} else {
		opts.AllowCredentials = true
	}
	return cors.New(opts)
}

// SecurityHeaders sets response headers every API response should carry.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}
