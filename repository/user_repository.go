package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// UserRepository is the account store.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByIDs batch-loads accounts for message author projection.
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	// GetByUsernames resolves @mention tokens to accounts.
	GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error
	UpdateAvatar(ctx context.Context, userID string, avatarURL string) error
	// UpdatePassword swaps in a new bcrypt hash; revoking sessions is the
	// caller's job.
	UpdatePassword(ctx context.Context, userID string, newPasswordHash string) error
	Count(ctx context.Context) (int, error)
	// List pages over all accounts for the platform admin console.
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	// ListForAdmin pages over all accounts with usage aggregates.
	ListForAdmin(ctx context.Context, limit, offset int) ([]models.AdminUserListItem, error)
	Delete(ctx context.Context, id string) error
}
