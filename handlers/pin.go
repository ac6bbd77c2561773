package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// PinHandler serves channel pins.
type PinHandler struct {
	pins *services.PinService
}

func NewPinHandler(pins *services.PinService) *PinHandler {
	return &PinHandler{pins: pins}
}

func (h *PinHandler) Pin(w http.ResponseWriter, r *http.Request) {
	err := h.pins.Pin(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "message pinned"})
}

func (h *PinHandler) Unpin(w http.ResponseWriter, r *http.Request) {
	err := h.pins.Unpin(r.Context(),
		chi.URLParam(r, "channelId"), chi.URLParam(r, "messageId"),
		middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "message unpinned"})
}

func (h *PinHandler) List(w http.ResponseWriter, r *http.Request) {
	pins, err := h.pins.List(r.Context(), chi.URLParam(r, "channelId"), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, pins)
}
