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

type sqliteServerRepo struct {
	db database.TxQuerier
}

func NewSQLiteServerRepo(db database.TxQuerier) ServerRepository {
	return &sqliteServerRepo{db: db}
}

func (r *sqliteServerRepo) Create(ctx context.Context, server *models.Server) error {
	query := `
		INSERT INTO servers (id, name, icon_url, owner_id, invite_required, sfu_instance_id)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		server.Name, server.IconURL, server.OwnerID,
		server.InviteRequired, server.SFUInstanceID,
	).Scan(&server.ID, &server.CreatedAt)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	return nil
}

func (r *sqliteServerRepo) GetByID(ctx context.Context, id string) (*models.Server, error) {
	query := `
		SELECT id, name, icon_url, owner_id, invite_required, sfu_instance_id, created_at
		FROM servers WHERE id = ?`

	s := &models.Server{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Name, &s.IconURL, &s.OwnerID,
		&s.InviteRequired, &s.SFUInstanceID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get server: %w", err)
	}
	return s, nil
}

func (r *sqliteServerRepo) ListByUser(ctx context.Context, userID string) ([]models.UserServer, error) {
	query := `
		SELECT s.id, s.name, s.icon_url, s.owner_id, s.invite_required,
		       s.sfu_instance_id, s.created_at, m.position
		FROM servers s
		JOIN server_members m ON m.server_id = s.id
		WHERE m.user_id = ?
		ORDER BY m.position, s.created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user servers: %w", err)
	}
	defer rows.Close()

	var servers []models.UserServer
	for rows.Next() {
		var s models.UserServer
		if err := rows.Scan(
			&s.ID, &s.Name, &s.IconURL, &s.OwnerID, &s.InviteRequired,
			&s.SFUInstanceID, &s.CreatedAt, &s.Position,
		); err != nil {
			return nil, fmt.Errorf("scan server row: %w", err)
		}
		servers = append(servers, s)
	}
	return servers, rows.Err()
}

func (r *sqliteServerRepo) Update(ctx context.Context, server *models.Server) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE servers SET name = ?, invite_required = ?, sfu_instance_id = ? WHERE id = ?`,
		server.Name, server.InviteRequired, server.SFUInstanceID, server.ID)
	if err != nil {
		return fmt.Errorf("update server: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteServerRepo) UpdateIcon(ctx context.Context, serverID string, iconURL string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE servers SET icon_url = ? WHERE id = ?`, iconURL, serverID)
	if err != nil {
		return fmt.Errorf("update server icon: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteServerRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete server: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteServerRepo) Stats(ctx context.Context, serverID string) (*models.ServerStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM server_members WHERE server_id = ?),
			(SELECT COUNT(*) FROM channels WHERE server_id = ?),
			(SELECT COUNT(*) FROM messages m JOIN channels c ON c.id = m.channel_id WHERE c.server_id = ?),
			(SELECT COUNT(*) FROM roles WHERE server_id = ?)`

	stats := &models.ServerStats{}
	err := r.db.QueryRowContext(ctx, query, serverID, serverID, serverID, serverID).Scan(
		&stats.MemberCount, &stats.ChannelCount, &stats.MessageCount, &stats.RoleCount)
	if err != nil {
		return nil, fmt.Errorf("server stats: %w", err)
	}
	return stats, nil
}

func (r *sqliteServerRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM servers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count servers: %w", err)
	}
	return count, nil
}

func (r *sqliteServerRepo) ListForAdmin(ctx context.Context, limit, offset int) ([]models.AdminServerListItem, error) {
	query := `
		SELECT s.id, s.name, s.icon_url, s.owner_id, u.username,
		       s.sfu_instance_id, COALESCE(i.is_platform_managed, 0),
		       (SELECT COUNT(*) FROM server_members WHERE server_id = s.id),
		       (SELECT COUNT(*) FROM channels WHERE server_id = s.id),
		       (SELECT COUNT(*) FROM messages m JOIN channels c ON c.id = m.channel_id WHERE c.server_id = s.id),
		       s.created_at,
		       (SELECT MAX(m.created_at) FROM messages m JOIN channels c ON c.id = m.channel_id WHERE c.server_id = s.id)
		FROM servers s
		JOIN users u ON u.id = s.owner_id
		LEFT JOIN sfu_instances i ON i.id = s.sfu_instance_id
		ORDER BY s.created_at DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list servers for admin: %w", err)
	}
	defer rows.Close()

	var items []models.AdminServerListItem
	for rows.Next() {
		var item models.AdminServerListItem
		if err := rows.Scan(
			&item.ID, &item.Name, &item.IconURL, &item.OwnerID, &item.OwnerUsername,
			&item.SFUInstanceID, &item.IsPlatformManaged,
			&item.MemberCount, &item.ChannelCount, &item.MessageCount,
			&item.CreatedAt, &item.LastActivity,
		); err != nil {
			return nil, fmt.Errorf("scan admin server row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
