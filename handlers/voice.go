package handlers

import (
	"net/http"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// VoiceHandler issues SFU join tokens. Everything else about voice rides the
// websocket.
type VoiceHandler struct {
	voice *services.VoiceService
}

func NewVoiceHandler(voice *services.VoiceService) *VoiceHandler {
	return &VoiceHandler{voice: voice}
}

func (h *VoiceHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req models.VoiceTokenRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	token, err := h.voice.Join(r.Context(), middleware.UserID(r.Context()), req.ChannelID)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, token)
}
