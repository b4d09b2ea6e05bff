package middleware

import (
	"app/internal/logger"
	"app/internal/util"
	"context"
	"net/http"
	"strings"
)

// Injected key type to avoid context collisions
type contextKey string

const (
	UserContextKey   = contextKey("user")
	ClaimsContextKey = contextKey("claims")
)

// SessionCookieName is the cookie carrying the minted session token.
const SessionCookieName = "session"

// AuthMiddleware authenticates a request from either a Bearer token issued
// by the identity provider or a previously minted session cookie, and puts
// the user ID into the request context.
func AuthMiddleware(identityKey, sessionSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logger.New()

			tokenString, keyMaterial := "", identityKey
			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) != 2 || parts[0] != "Bearer" {
					logger.Error().Msg("Invalid authorization header")
					http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
					return
				}
				tokenString = parts[1]
			} else if cookie, err := r.Cookie(SessionCookieName); err == nil {
				tokenString = cookie.Value
				keyMaterial = sessionSecret
			}

			if tokenString == "" {
				logger.Error().Msg("Authorization header missing")
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}

			claims, err := util.ValidateJWT(tokenString, keyMaterial)
			if err != nil {
				logger.Error().Msgf("Invalid token: %+v", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			// Embed user ID and claims into request context
			ctx := context.WithValue(r.Context(), UserContextKey, claims.Subject)
			ctx = context.WithValue(ctx, ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
