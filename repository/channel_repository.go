package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// ChannelRepository is the channel store, server-scoped throughout.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Channel, error)
	Update(ctx context.Context, channel *models.Channel) error
	Delete(ctx context.Context, id string) error
	// MaxPosition scopes to one category (nil = uncategorized) so new
	// channels append at the bottom of their group.
	MaxPosition(ctx context.Context, serverID string, categoryID *string) (int, error)
	// UpdatePositions applies a full reorder in one transaction.
	UpdatePositions(ctx context.Context, serverID string, items []models.PositionUpdate) error
}
