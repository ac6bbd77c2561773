package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
)

// ChannelPermChecker gates requests on effective permissions. Implemented by
// the channel permission service.
type ChannelPermChecker interface {
	RequireChannel(ctx context.Context, channelID, userID string, perm models.Permission) error
	RequireServer(ctx context.Context, serverID, userID string, perm models.Permission) error
	ResolveServer(ctx context.Context, serverID, userID string) (models.Permission, error)
}

// RequireChannelPermission gates a route on the effective mask for the
// channel named by the {channelId} URL param.
func RequireChannelPermission(perms ChannelPermChecker, perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			channelID := chi.URLParam(r, "channelId")
			userID := UserID(r.Context())
			if err := perms.RequireChannel(r.Context(), channelID, userID, perm); err != nil {
				pkg.Error(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireServerPermission gates a route on the server-level mask for the
// server named by the {serverId} URL param.
func RequireServerPermission(perms ChannelPermChecker, perm models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serverID := chi.URLParam(r, "serverId")
			userID := UserID(r.Context())
			if err := perms.RequireServer(r.Context(), serverID, userID, perm); err != nil {
				pkg.Error(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
