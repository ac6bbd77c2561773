package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// ChannelPermissionRepository stores per-channel allow/deny overrides, one
// row per (channel_id, role_id).
type ChannelPermissionRepository interface {
	// GetByChannel lists every override on a channel (settings UI).
	GetByChannel(ctx context.Context, channelID string) ([]models.ChannelPermissionOverride, error)
	// GetByChannelAndRoles narrows to the given roles (permission
	// resolution path).
	GetByChannelAndRoles(ctx context.Context, channelID string, roleIDs []string) ([]models.ChannelPermissionOverride, error)
	// Set upserts one override.
	Set(ctx context.Context, override *models.ChannelPermissionOverride) error
	Delete(ctx context.Context, channelID, roleID string) error
}
