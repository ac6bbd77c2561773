package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// MemberHandler serves the member roster and moderation actions.
type MemberHandler struct {
	members *services.MemberService
}

func NewMemberHandler(members *services.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, members)
}

func (h *MemberHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.members.Leave(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context())); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "left the server"})
}

func (h *MemberHandler) Kick(w http.ResponseWriter, r *http.Request) {
	err := h.members.Kick(r.Context(),
		chi.URLParam(r, "serverId"), chi.URLParam(r, "userId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "member kicked"})
}

func (h *MemberHandler) Ban(w http.ResponseWriter, r *http.Request) {
	var req models.BanRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	err := h.members.Ban(r.Context(),
		chi.URLParam(r, "serverId"), chi.URLParam(r, "userId"),
		middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "member banned"})
}

func (h *MemberHandler) Unban(w http.ResponseWriter, r *http.Request) {
	err := h.members.Unban(r.Context(),
		chi.URLParam(r, "serverId"), chi.URLParam(r, "userId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "ban lifted"})
}

func (h *MemberHandler) ListBans(w http.ResponseWriter, r *http.Request) {
	bans, err := h.members.ListBans(r.Context(), chi.URLParam(r, "serverId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, bans)
}
