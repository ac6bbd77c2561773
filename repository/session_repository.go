package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// SessionRepository stores refresh-token sessions. Only token hashes are
// persisted; lookups take the SHA-256 of the presented token.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID revokes every session of a user (password change,
	// account deletion).
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired is called by the background sweeper; returns the number
	// of rows removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
