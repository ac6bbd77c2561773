package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// InviteRepository is the invite-code store.
type InviteRepository interface {
	Create(ctx context.Context, invite *models.Invite) error
	GetByCode(ctx context.Context, code string) (*models.Invite, error)
	ListByServer(ctx context.Context, serverID string) ([]models.InviteWithCreator, error)
	// IncrementUses bumps the counter after a successful redeem.
	IncrementUses(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
}
