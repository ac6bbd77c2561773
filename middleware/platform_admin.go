package middleware

import (
	"net/http"

	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/repository"
)

// RequirePlatformAdmin gates the admin plane on the account flag. The flag is
// read per request; revoking it takes effect immediately.
func RequirePlatformAdmin(users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := users.GetByID(r.Context(), UserID(r.Context()))
			if err != nil {
				pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unknown account")
				return
			}
			if !user.IsPlatformAdmin {
				pkg.ErrorWithMessage(w, http.StatusForbidden, "platform admin only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
