package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// PasswordResetRepository stores one-shot password reset tokens (hashed).
type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	// GetByTokenHash looks up by the SHA-256 of the presented token;
	// pkg.ErrNotFound when absent.
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	// GetLatestByUserID returns the newest token for cooldown checks.
	GetLatestByUserID(ctx context.Context, userID string) (*models.PasswordResetToken, error)
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID clears older tokens before issuing a fresh one.
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired runs opportunistically on each reset request; no cron
	// needed.
	DeleteExpired(ctx context.Context) error
}
