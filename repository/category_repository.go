package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// CategoryRepository is the channel-category store, server-scoped throughout.
type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id string) (*models.Category, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
	MaxPosition(ctx context.Context, serverID string) (int, error)
	// UpdatePositions applies a full reorder in one transaction.
	UpdatePositions(ctx context.Context, serverID string, items []models.PositionUpdate) error
}
