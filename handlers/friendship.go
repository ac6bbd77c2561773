package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chorushq/chorus/middleware"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/services"
)

// FriendshipHandler serves the friends list and request flow.
type FriendshipHandler struct {
	friendships *services.FriendshipService
}

func NewFriendshipHandler(friendships *services.FriendshipService) *FriendshipHandler {
	return &FriendshipHandler{friendships: friendships}
}

func (h *FriendshipHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	var req models.SendFriendRequestRequest
	if err := pkg.DecodeAndValidate(r.Body, &req); err != nil {
		pkg.Error(w, err)
		return
	}
	friendship, err := h.friendships.SendRequest(r.Context(), middleware.UserID(r.Context()), &req)
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusCreated, friendship)
}

func (h *FriendshipHandler) Accept(w http.ResponseWriter, r *http.Request) {
	if err := h.friendships.Accept(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "friendshipId")); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "request accepted"})
}

func (h *FriendshipHandler) Decline(w http.ResponseWriter, r *http.Request) {
	if err := h.friendships.Decline(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "friendshipId")); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "request declined"})
}

func (h *FriendshipHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.friendships.Remove(r.Context(), middleware.UserID(r.Context()), chi.URLParam(r, "friendshipId")); err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, map[string]string{"message": "friend removed"})
}

func (h *FriendshipHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.friendships.ListFriends(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, friends)
}

func (h *FriendshipHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.friendships.ListPending(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		pkg.Error(w, err)
		return
	}
	pkg.JSON(w, http.StatusOK, pending)
}
