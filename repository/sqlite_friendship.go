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

type sqliteFriendshipRepo struct {
	db database.TxQuerier
}

func NewSQLiteFriendshipRepo(db database.TxQuerier) FriendshipRepository {
	return &sqliteFriendshipRepo{db: db}
}

func (r *sqliteFriendshipRepo) Create(ctx context.Context, f *models.Friendship) error {
	query := `
		INSERT INTO friendships (id, user_id, friend_id, status)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		f.UserID, f.FriendID, f.Status,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: friend request already exists", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("create friendship: %w", err)
	}
	return nil
}

func (r *sqliteFriendshipRepo) GetByID(ctx context.Context, id string) (*models.Friendship, error) {
	f := &models.Friendship{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, friend_id, status, created_at, updated_at
		 FROM friendships WHERE id = ?`, id,
	).Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get friendship: %w", err)
	}
	return f, nil
}

func (r *sqliteFriendshipRepo) GetByPair(ctx context.Context, userA, userB string) (*models.Friendship, error) {
	f := &models.Friendship{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, friend_id, status, created_at, updated_at
		 FROM friendships
		 WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
		userA, userB, userB, userA,
	).Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get friendship by pair: %w", err)
	}
	return f, nil
}

func (r *sqliteFriendshipRepo) UpdateStatus(ctx context.Context, id string, status models.FriendshipStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE friendships SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	if err != nil {
		return fmt.Errorf("update friendship status: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteFriendshipRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM friendships WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteFriendshipRepo) ListFriends(ctx context.Context, userID string) ([]models.FriendshipWithUser, error) {
	// The peer is whichever side of the row is not the viewer.
	query := `
		SELECT f.id, f.status, f.created_at,
		       u.id, u.username, u.display_name, u.avatar_url, u.status,
		       u.custom_status, u.created_at
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.user_id = ? THEN f.friend_id ELSE f.user_id END
		WHERE (f.user_id = ? OR f.friend_id = ?) AND f.status = 'accepted'
		ORDER BY u.username COLLATE NOCASE`

	rows, err := r.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var items []models.FriendshipWithUser
	for rows.Next() {
		var item models.FriendshipWithUser
		peer := &models.PublicUser{}
		if err := rows.Scan(
			&item.ID, &item.Status, &item.CreatedAt,
			&peer.ID, &peer.Username, &peer.DisplayName, &peer.AvatarURL,
			&peer.Status, &peer.CustomStatus, &peer.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan friendship row: %w", err)
		}
		item.User = peer
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *sqliteFriendshipRepo) ListPending(ctx context.Context, userID string) ([]models.FriendshipWithUser, error) {
	query := `
		SELECT f.id, f.status, f.created_at,
		       u.id, u.username, u.display_name, u.avatar_url, u.status,
		       u.custom_status, u.created_at,
		       f.friend_id = ?
		FROM friendships f
		JOIN users u ON u.id = CASE WHEN f.user_id = ? THEN f.friend_id ELSE f.user_id END
		WHERE (f.user_id = ? OR f.friend_id = ?) AND f.status = 'pending'
		ORDER BY f.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending friendships: %w", err)
	}
	defer rows.Close()

	var items []models.FriendshipWithUser
	for rows.Next() {
		var item models.FriendshipWithUser
		peer := &models.PublicUser{}
		if err := rows.Scan(
			&item.ID, &item.Status, &item.CreatedAt,
			&peer.ID, &peer.Username, &peer.DisplayName, &peer.AvatarURL,
			&peer.Status, &peer.CustomStatus, &peer.CreatedAt,
			&item.Incoming,
		); err != nil {
			return nil, fmt.Errorf("scan friendship row: %w", err)
		}
		item.User = peer
		items = append(items, item)
	}
	return items, rows.Err()
}
