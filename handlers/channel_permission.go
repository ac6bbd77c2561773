package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// ChannelPermissionHandler serves per-channel role overrides.
type ChannelPermissionHandler struct {
	perms *services.ChannelPermissionService
}

func NewChannelPermissionHandler(perms *services.ChannelPermissionService) *ChannelPermissionHandler {
	return &ChannelPermissionHandler{perms: perms}
}

func (h *ChannelPermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.perms.ListOverrides(r.Context(), chi.URLParam(r, "channelId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, overrides)
}

func (h *ChannelPermissionHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req models.SetOverrideRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	override, err := h.perms.SetOverride(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "roleId"),
		middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, override)
}

func (h *ChannelPermissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.perms.DeleteOverride(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "roleId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "override removed"})
}
