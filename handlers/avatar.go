package handlers

import (
	"net/http"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// AvatarHandler serves the caller's avatar upload.
type AvatarHandler struct {
	users   *services.UserService
	uploads *services.UploadService
}

func NewAvatarHandler(users *services.UserService, uploads *services.UploadService) *AvatarHandler {
	return &AvatarHandler{users: users, uploads: uploads}
}

// Upload accepts a multipart form with an "avatar" image file.
func (h *AvatarHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("avatar")
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "missing avatar file")
		return
	}
	defer file.Close()

	url, err := h.uploads.SaveAvatar(file, header)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	user, err := h.users.UpdateAvatar(r.Context(), middleware.UserID(r.Context()), url)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, user)
}
