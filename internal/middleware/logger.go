package middleware

import (
	"app/internal/logger"
	"net/http"
	"time"
)

// LoggerMiddleware logs incoming HTTP requests.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Call the next handler in the chain
		next.ServeHTTP(w, r)

		logger := logger.New()
		logger.Debug().
			Dur("elapsed", time.Since(start)).
			Msgf("%s %s", r.Method, r.URL.RequestURI())
	})
}
