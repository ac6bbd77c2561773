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

type sqliteBanRepo struct {
	db database.TxQuerier
}

func NewSQLiteBanRepo(db database.TxQuerier) BanRepository {
	return &sqliteBanRepo{db: db}
}

func (r *sqliteBanRepo) Create(ctx context.Context, ban *models.Ban) error {
	query := `
		INSERT INTO bans (server_id, user_id, username, banned_by, reason)
		VALUES (?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		ban.ServerID, ban.UserID, ban.Username, ban.BannedBy, ban.Reason,
	).Scan(&ban.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user is already banned", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("create ban: %w", err)
	}
	return nil
}

func (r *sqliteBanRepo) Exists(ctx context.Context, serverID, userID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM bans WHERE server_id = ? AND user_id = ?`,
		serverID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return true, nil
}

func (r *sqliteBanRepo) ListByServer(ctx context.Context, serverID string) ([]models.Ban, error) {
	query := `
		SELECT server_id, user_id, username, banned_by, reason, created_at
		FROM bans WHERE server_id = ?
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	defer rows.Close()

	var bans []models.Ban
	for rows.Next() {
		var b models.Ban
		if err := rows.Scan(
			&b.ServerID, &b.UserID, &b.Username,
			&b.BannedBy, &b.Reason, &b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ban row: %w", err)
		}
		bans = append(bans, b)
	}
	return bans, rows.Err()
}

func (r *sqliteBanRepo) Delete(ctx context.Context, serverID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM bans WHERE server_id = ? AND user_id = ?`, serverID, userID)
	if err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	return requireAffected(result)
}
