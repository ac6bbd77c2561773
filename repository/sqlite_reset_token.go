package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
)

type sqliteResetTokenRepo struct {
	db database.TxQuerier
}

func NewSQLiteResetTokenRepo(db database.TxQuerier) PasswordResetRepository {
	return &sqliteResetTokenRepo{db: db}
}

func (r *sqliteResetTokenRepo) Create(ctx context.Context, token *models.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		token.UserID, token.TokenHash, token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

func (r *sqliteResetTokenRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM password_reset_tokens WHERE token_hash = ?`

	t := &models.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reset token: %w", err)
	}
	return t, nil
}

func (r *sqliteResetTokenRepo) GetLatestByUserID(ctx context.Context, userID string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM password_reset_tokens
		WHERE user_id = ?
		ORDER BY created_at DESC LIMIT 1`

	t := &models.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest reset token: %w", err)
	}
	return t, nil
}

func (r *sqliteResetTokenRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteResetTokenRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user reset tokens: %w", err)
	}
	return nil
}

func (r *sqliteResetTokenRepo) DeleteExpired(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at < CURRENT_TIMESTAMP`); err != nil {
		return fmt.Errorf("delete expired reset tokens: %w", err)
	}
	return nil
}
