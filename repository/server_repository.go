package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// ServerRepository is the store for servers themselves; memberships live in
// MemberRepository.
type ServerRepository interface {
	Create(ctx context.Context, server *models.Server) error
	GetByID(ctx context.Context, id string) (*models.Server, error)
	// ListByUser returns the servers a user belongs to, ordered by the
	// member's sidebar position.
	ListByUser(ctx context.Context, userID string) ([]models.UserServer, error)
	Update(ctx context.Context, server *models.Server) error
	UpdateIcon(ctx context.Context, serverID string, iconURL string) error
	// Delete cascades categories, channels, roles, members, invites and bans.
	Delete(ctx context.Context, id string) error
	// Stats aggregates the counters for the settings page.
	Stats(ctx context.Context, serverID string) (*models.ServerStats, error)
	Count(ctx context.Context) (int, error)
	// ListForAdmin pages over all servers with member counts for the
	// platform console.
	ListForAdmin(ctx context.Context, limit, offset int) ([]models.AdminServerListItem, error)
}
