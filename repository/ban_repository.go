package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// BanRepository stores server bans. Username is denormalized at ban time so
// the list survives account deletion.
type BanRepository interface {
	Create(ctx context.Context, ban *models.Ban) error
	Exists(ctx context.Context, serverID, userID string) (bool, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Ban, error)
	Delete(ctx context.Context, serverID, userID string) error
}
