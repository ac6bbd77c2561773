package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/pkg"
)

// RequireServerMembership gates a route on membership of the server named by
// the {serverId} URL param. Resolving the server-level mask doubles as the
// membership check.
func RequireServerMembership(perms ChannelPermChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serverID := chi.URLParam(r, "serverId")
			userID := UserID(r.Context())
			if _, err := perms.ResolveServer(r.Context(), serverID, userID); err != nil {
				pkg.Error(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
