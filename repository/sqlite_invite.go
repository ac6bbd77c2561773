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

type sqliteInviteRepo struct {
	db database.TxQuerier
}

func NewSQLiteInviteRepo(db database.TxQuerier) InviteRepository {
	return &sqliteInviteRepo{db: db}
}

func (r *sqliteInviteRepo) Create(ctx context.Context, invite *models.Invite) error {
	query := `
		INSERT INTO invites (code, server_id, created_by, max_uses, expires_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		invite.Code, invite.ServerID, invite.CreatedBy,
		invite.MaxUses, invite.ExpiresAt,
	).Scan(&invite.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: invite code collision", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

func (r *sqliteInviteRepo) GetByCode(ctx context.Context, code string) (*models.Invite, error) {
	query := `
		SELECT code, server_id, created_by, max_uses, uses, expires_at, created_at
		FROM invites WHERE code = ?`

	inv := &models.Invite{}
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&inv.Code, &inv.ServerID, &inv.CreatedBy, &inv.MaxUses,
		&inv.Uses, &inv.ExpiresAt, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

func (r *sqliteInviteRepo) ListByServer(ctx context.Context, serverID string) ([]models.InviteWithCreator, error) {
	query := `
		SELECT i.code, i.server_id, i.created_by, i.max_uses, i.uses,
		       i.expires_at, i.created_at, u.username, u.display_name
		FROM invites i
		LEFT JOIN users u ON u.id = i.created_by
		WHERE i.server_id = ?
		ORDER BY i.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var invites []models.InviteWithCreator
	for rows.Next() {
		var inv models.InviteWithCreator
		if err := rows.Scan(
			&inv.Code, &inv.ServerID, &inv.CreatedBy, &inv.MaxUses, &inv.Uses,
			&inv.ExpiresAt, &inv.CreatedAt,
			&inv.CreatorUsername, &inv.CreatorDisplayName,
		); err != nil {
			return nil, fmt.Errorf("scan invite row: %w", err)
		}
		invites = append(invites, inv)
	}
	return invites, rows.Err()
}

func (r *sqliteInviteRepo) IncrementUses(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invites SET uses = uses + 1 WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("increment invite uses: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteInviteRepo) Delete(ctx context.Context, code string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM invites WHERE code = ?`, code)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return requireAffected(result)
}
