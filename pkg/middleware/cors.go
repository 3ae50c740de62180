package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS creates a CORS middleware for the dashboard origins. A "*" entry
// opens the API to any origin without credentials.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	credentials := true
	for _, origin := range allowedOrigins {
		if origin == "*" {
			credentials = false
			break
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: credentials,
		MaxAge:           300,
	})

	return c.Handler
}
