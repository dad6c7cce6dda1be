// Package middleware holds the HTTP middleware for the admin surface.
package middleware

import (
	"net/http"
	"strings"

	"modelbroker/internal/auth"
	"modelbroker/internal/utils"
)

// AdminJWT gates a handler behind a valid admin session token. The token
// arrives in the Authorization header, with or without a Bearer prefix.
func AdminJWT(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}

			tokenString = strings.TrimPrefix(tokenString, "Bearer ")

			if err := auth.ValidateAdminJWT(tokenString, secret); err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
