package repository

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
)

type sqliteChannelPermRepo struct {
	db database.TxQuerier
}

func NewSQLiteChannelPermRepo(db database.TxQuerier) ChannelPermissionRepository {
	return &sqliteChannelPermRepo{db: db}
}

func (r *sqliteChannelPermRepo) GetByChannel(ctx context.Context, channelID string) ([]models.ChannelPermissionOverride, error) {
	query := `
		SELECT channel_id, role_id, allow, deny
		FROM channel_permissions WHERE channel_id = ?`

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("get channel overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.ChannelPermissionOverride
	for rows.Next() {
		var o models.ChannelPermissionOverride
		if err := rows.Scan(&o.ChannelID, &o.RoleID, &o.Allow, &o.Deny); err != nil {
			return nil, fmt.Errorf("scan override row: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

func (r *sqliteChannelPermRepo) GetByChannelAndRoles(ctx context.Context, channelID string, roleIDs []string) ([]models.ChannelPermissionOverride, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT channel_id, role_id, allow, deny
		FROM channel_permissions
		WHERE channel_id = ? AND role_id IN (` + placeholders(len(roleIDs)) + `)`

	args := append([]any{channelID}, toAnySlice(roleIDs)...)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get role overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.ChannelPermissionOverride
	for rows.Next() {
		var o models.ChannelPermissionOverride
		if err := rows.Scan(&o.ChannelID, &o.RoleID, &o.Allow, &o.Deny); err != nil {
			return nil, fmt.Errorf("scan override row: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

func (r *sqliteChannelPermRepo) Set(ctx context.Context, override *models.ChannelPermissionOverride) error {
	query := `
		INSERT INTO channel_permissions (channel_id, role_id, allow, deny)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (channel_id, role_id) DO UPDATE SET allow = excluded.allow, deny = excluded.deny`

	if _, err := r.db.ExecContext(ctx, query,
		override.ChannelID, override.RoleID, override.Allow, override.Deny); err != nil {
		return fmt.Errorf("set channel override: %w", err)
	}
	return nil
}

func (r *sqliteChannelPermRepo) Delete(ctx context.Context, channelID, roleID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM channel_permissions WHERE channel_id = ? AND role_id = ?`,
		channelID, roleID)
	if err != nil {
		return fmt.Errorf("delete channel override: %w", err)
	}
	return requireAffected(result)
}
