package repository

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
)

type sqliteServerMuteRepo struct {
	db database.TxQuerier
}

func NewSQLiteServerMuteRepo(db database.TxQuerier) ServerMuteRepository {
	return &sqliteServerMuteRepo{db: db}
}

func (r *sqliteServerMuteRepo) Upsert(ctx context.Context, mute *models.ServerMute) error {
	query := `
		INSERT INTO server_mutes (user_id, server_id, muted_until)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, server_id) DO UPDATE SET muted_until = excluded.muted_until`

	if _, err := r.db.ExecContext(ctx, query,
		mute.UserID, mute.ServerID, mute.MutedUntil); err != nil {
		return fmt.Errorf("upsert server mute: %w", err)
	}
	return nil
}

func (r *sqliteServerMuteRepo) Delete(ctx context.Context, userID, serverID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM server_mutes WHERE user_id = ? AND server_id = ?`,
		userID, serverID)
	if err != nil {
		return fmt.Errorf("delete server mute: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteServerMuteRepo) MutedServerIDs(ctx context.Context, userID string) ([]string, error) {
	// Expired mutes are pruned here rather than by a background job.
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM server_mutes WHERE user_id = ? AND muted_until IS NOT NULL AND muted_until < CURRENT_TIMESTAMP`,
		userID); err != nil {
		return nil, fmt.Errorf("prune expired mutes: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT server_id FROM server_mutes WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list muted servers: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan muted server row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
