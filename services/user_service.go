package services

import (
	"context"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/repository"
	"github.com/chorushq/chorus/ws"
)

// UserService covers account profile reads and edits. Credentials live in
// AuthService.
type UserService struct {
	users repository.UserRepository
	hub   ws.EventPublisher
}

func NewUserService(users repository.UserRepository, hub ws.EventPublisher) *UserService {
	return &UserService{users: users, hub: hub}
}

// Me returns the caller's own record, email included.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// GetPublic returns another user's shareable profile.
func (s *UserService) GetPublic(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// UpdateProfile applies a partial profile edit and broadcasts the new public
// shape so member lists refresh.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != nil {
		user.DisplayName = req.DisplayName
	}
	if req.CustomStatus != nil {
		user.CustomStatus = req.CustomStatus
	}
	if req.Language != nil {
		user.Language = *req.Language
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.hub.BroadcastToAll(ws.Event{Op: ws.OpMemberUpdate, Data: map[string]any{"user": user.Public()}})
	return user, nil
}

// UpdateAvatar stores the new avatar URL (the upload handler wrote the file).
func (s *UserService) UpdateAvatar(ctx context.Context, userID, avatarURL string) (*models.User, error) {
	if err := s.users.UpdateAvatar(ctx, userID, avatarURL); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToAll(ws.Event{Op: ws.OpMemberUpdate, Data: map[string]any{"user": user.Public()}})
	return user, nil
}
