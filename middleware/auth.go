// Package middleware holds the chi middlewares: bearer-token auth, permission
// gates resolved from URL params, and the platform-admin gate.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
)

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	usernameKey contextKey = "username"
)

// TokenValidator verifies an access token and returns its claims.
type TokenValidator interface {
	ValidateAccessToken(token string) (*models.TokenClaims, error)
}

// Auth rejects requests without a valid bearer token and stores the caller's
// identity in the request context.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				pkg.ErrorWithMessage(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				pkg.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, usernameKey, claims.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID returns the authenticated user id, empty when unauthenticated.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Username returns the authenticated username, empty when unauthenticated.
func Username(ctx context.Context) string {
	name, _ := ctx.Value(usernameKey).(string)
	return name
}
