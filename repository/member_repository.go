package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// MemberRepository is the server membership store, keyed (server_id, user_id).
type MemberRepository interface {
	Add(ctx context.Context, member *models.ServerMember) error
	Get(ctx context.Context, serverID, userID string) (*models.ServerMember, error)
	IsMember(ctx context.Context, serverID, userID string) (bool, error)
	// ListUserIDs backs server-scoped event fan-out.
	ListUserIDs(ctx context.Context, serverID string) ([]string, error)
	// ListByServer joins member rows with their accounts for the member list.
	ListByServer(ctx context.Context, serverID string) ([]models.ServerMember, map[string]*models.User, error)
	Count(ctx context.Context, serverID string) (int, error)
	// MaxPosition returns the highest sidebar position among the user's
	// memberships; new servers append after it.
	MaxPosition(ctx context.Context, userID string) (int, error)
	// UpdatePositions reorders one user's sidebar atomically.
	UpdatePositions(ctx context.Context, userID string, items []models.PositionUpdate) error
	Remove(ctx context.Context, serverID, userID string) error
}
