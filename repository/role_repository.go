package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// RoleRepository is the role store plus the user↔role mapping, all
// server-scoped.
type RoleRepository interface {
	GetByID(ctx context.Context, id string) (*models.Role, error)
	ListByServer(ctx context.Context, serverID string) ([]models.Role, error)
	// GetDefault returns the server's @everyone role; exactly one exists.
	GetDefault(ctx context.Context, serverID string) (*models.Role, error)
	// GetByUser returns the roles a user holds in one server, default role
	// included.
	GetByUser(ctx context.Context, serverID, userID string) ([]models.Role, error)
	// GetByUsers batch-loads role sets for the member list.
	GetByUsers(ctx context.Context, serverID string, userIDs []string) (map[string][]models.Role, error)
	MaxPosition(ctx context.Context, serverID string) (int, error)

	Create(ctx context.Context, role *models.Role) error
	Update(ctx context.Context, role *models.Role) error
	// Delete refuses to remove the default role (pkg.ErrForbidden).
	Delete(ctx context.Context, id string) error
	// UpdatePositions applies a full hierarchy reorder in one transaction.
	UpdatePositions(ctx context.Context, serverID string, items []models.PositionUpdate) error

	AssignToUser(ctx context.Context, serverID, userID, roleID string) error
	RemoveFromUser(ctx context.Context, userID, roleID string) error
}
