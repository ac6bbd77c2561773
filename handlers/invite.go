package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// InviteHandler serves invite codes. Preview is the only route on it that
// does not require authentication.
type InviteHandler struct {
	invites *services.InviteService
}

func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateInviteRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	invite, err := h.invites.Create(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, invite)
}

func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	invites, err := h.invites.List(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, invites)
}

func (h *InviteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.invites.Delete(r.Context(),
		chi.URLParam(r, "serverId"), chi.URLParam(r, "code"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "invite revoked"})
}

func (h *InviteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.invites.Preview(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, preview)
}

func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	server, err := h.invites.Redeem(r.Context(), chi.URLParam(r, "code"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, server)
}
