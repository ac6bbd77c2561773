package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// ServerMuteRepository stores per-user notification mutes. muted_until NULL
// means indefinite; expired rows are pruned lazily on read.
type ServerMuteRepository interface {
	// Upsert replaces any existing mute for the pair.
	Upsert(ctx context.Context, mute *models.ServerMute) error
	Delete(ctx context.Context, userID, serverID string) error
	// MutedServerIDs returns the server ids the user has actively muted,
	// deleting expired rows as a side effect.
	MutedServerIDs(ctx context.Context, userID string) ([]string, error)
}
