// Package handlers holds the HTTP layer: thin adapters that decode and
// validate requests, call one service method, and write the response
// envelope. No domain logic lives here.
package handlers

import (
	"net/http"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/ratelimit"
	"github.com/chorushq/chorus/services"
)

// AuthHandler serves the credential endpoints and the caller's own account.
type AuthHandler struct {
	auth     *services.AuthService
	users    *services.UserService
	presence *services.PresenceService
}

func NewAuthHandler(auth *services.AuthService, users *services.UserService, presence *services.PresenceService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users, presence: presence}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	resp, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	resp, err := h.auth.Login(r.Context(), &req, ratelimit.ExtractIP(r))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	resp, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.presence.SetStatus(r.Context(), middleware.UserID(r.Context()), req.Status); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.ChangePasswordRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), middleware.UserID(r.Context()), &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		pkg.Error(w, err)
		return
	}
	// The reply never reveals whether the address exists.
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "if the address exists, a reset link is on its way"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), &req); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "password reset"})
}
