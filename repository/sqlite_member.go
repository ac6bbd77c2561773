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

type sqliteMemberRepo struct {
	db *sql.DB
}

func NewSQLiteMemberRepo(db *sql.DB) MemberRepository {
	return &sqliteMemberRepo{db: db}
}

func (r *sqliteMemberRepo) Add(ctx context.Context, member *models.ServerMember) error {
	query := `
		INSERT INTO server_members (server_id, user_id, position)
		VALUES (?, ?, ?)
		RETURNING joined_at`

	err := r.db.QueryRowContext(ctx, query,
		member.ServerID, member.UserID, member.Position,
	).Scan(&member.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already a member", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *sqliteMemberRepo) Get(ctx context.Context, serverID, userID string) (*models.ServerMember, error) {
	query := `
		SELECT server_id, user_id, position, joined_at
		FROM server_members WHERE server_id = ? AND user_id = ?`

	m := &models.ServerMember{}
	err := r.db.QueryRowContext(ctx, query, serverID, userID).Scan(
		&m.ServerID, &m.UserID, &m.Position, &m.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (r *sqliteMemberRepo) IsMember(ctx context.Context, serverID, userID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM server_members WHERE server_id = ? AND user_id = ?`,
		serverID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

func (r *sqliteMemberRepo) ListUserIDs(ctx context.Context, serverID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM server_members WHERE server_id = ?`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *sqliteMemberRepo) ListByServer(ctx context.Context, serverID string) ([]models.ServerMember, map[string]*models.User, error) {
	query := `
		SELECT m.server_id, m.user_id, m.position, m.joined_at, ` + userColumns + `
		FROM server_members m
		JOIN users ON users.id = m.user_id
		WHERE m.server_id = ?
		ORDER BY users.username`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []models.ServerMember
	users := make(map[string]*models.User)
	for rows.Next() {
		var m models.ServerMember
		u := &models.User{}
		if err := rows.Scan(
			&m.ServerID, &m.UserID, &m.Position, &m.JoinedAt,
			&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.PasswordHash,
			&u.Status, &u.CustomStatus, &u.Email, &u.Language, &u.IsPlatformAdmin,
			&u.CreatedAt,
		); err != nil {
			return nil, nil, fmt.Errorf("scan member row: %w", err)
		}
		members = append(members, m)
		users[u.ID] = u
	}
	return members, users, rows.Err()
}

func (r *sqliteMemberRepo) Count(ctx context.Context, serverID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM server_members WHERE server_id = ?`, serverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func (r *sqliteMemberRepo) MaxPosition(ctx context.Context, userID string) (int, error) {
	var max int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) FROM server_members WHERE user_id = ?`,
		userID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max member position: %w", err)
	}
	return max, nil
}

func (r *sqliteMemberRepo) UpdatePositions(ctx context.Context, userID string, items []models.PositionUpdate) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, item := range items {
			if _, err := tx.ExecContext(ctx,
				`UPDATE server_members SET position = ? WHERE user_id = ? AND server_id = ?`,
				item.Position, userID, item.ID); err != nil {
				return fmt.Errorf("update member position: %w", err)
			}
		}
		return nil
	})
}

func (r *sqliteMemberRepo) Remove(ctx context.Context, serverID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM server_members WHERE server_id = ? AND user_id = ?`,
		serverID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return requireAffected(result)
}
