package services

import (
	"context"
	"time"

	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/repository"
)

// ServerMuteService manages per-user notification mutes. Muting is a member's
// own preference, so the only gate is membership.
type ServerMuteService struct {
	mutes repository.ServerMuteRepository
	perms *ChannelPermissionService
}

func NewServerMuteService(mutes repository.ServerMuteRepository, perms *ChannelPermissionService) *ServerMuteService {
	return &ServerMuteService{mutes: mutes, perms: perms}
}

// Mute silences a server for the given duration ("forever" stores no
// deadline). Re-muting replaces the previous deadline.
func (s *ServerMuteService) Mute(ctx context.Context, serverID, userID string, req *models.MuteServerRequest) (*models.ServerMute, error) {
	if _, err := s.perms.ResolveServer(ctx, serverID, userID); err != nil {
		return nil, err
	}
	mute := &models.ServerMute{
		UserID:     userID,
		ServerID:   serverID,
		MutedUntil: req.ParseMutedUntil(time.Now()),
	}
	if err := s.mutes.Upsert(ctx, mute); err != nil {
		return nil, err
	}
	return mute, nil
}

// Unmute lifts the mute; unmuting an unmuted server is a no-op.
func (s *ServerMuteService) Unmute(ctx context.Context, serverID, userID string) error {
	return s.mutes.Delete(ctx, userID, serverID)
}

// MutedServerIDs returns the user's actively muted servers for the sidebar.
func (s *ServerMuteService) MutedServerIDs(ctx context.Context, userID string) ([]string, error) {
	return s.mutes.MutedServerIDs(ctx, userID)
}
