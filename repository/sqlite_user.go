package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
)

const userColumns = `id, username, display_name, avatar_url, password_hash,
	status, custom_status, email, language, is_platform_admin, created_at`

type sqliteUserRepo struct {
	db database.TxQuerier
}

func NewSQLiteUserRepo(db database.TxQuerier) UserRepository {
	return &sqliteUserRepo{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.PasswordHash,
		&u.Status, &u.CustomStatus, &u.Email, &u.Language, &u.IsPlatformAdmin,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *sqliteUserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, display_name, avatar_url, password_hash, status, email, language, is_platform_admin)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.DisplayName, user.AvatarURL, user.PasswordHash,
		user.Status, user.Email, user.Language, user.IsPlatformAdmin,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			if strings.Contains(err.Error(), "idx_users_email") {
				return fmt.Errorf("%w: email already in use", pkg.ErrAlreadyExists)
			}
			return fmt.Errorf("%w: username already taken", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *sqliteUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *sqliteUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	result := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id IN (` + placeholders(len(ids)) + `)`
	rows, err := r.db.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		result[u.ID] = u
	}
	return result, rows.Err()
}

func (r *sqliteUserRepo) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE username IN (` + placeholders(len(usernames)) + `)`
	rows, err := r.db.QueryContext(ctx, query, toAnySlice(usernames)...)
	if err != nil {
		return nil, fmt.Errorf("get users by usernames: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *sqliteUserRepo) Update(ctx context.Context, user *models.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, custom_status = ?, language = ? WHERE id = ?`,
		user.DisplayName, user.CustomStatus, user.Language, user.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteUserRepo) UpdateStatus(ctx context.Context, userID string, status models.UserStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET status = ? WHERE id = ?`, status, userID)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteUserRepo) UpdateAvatar(ctx context.Context, userID string, avatarURL string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar_url = ? WHERE id = ?`, avatarURL, userID)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteUserRepo) UpdatePassword(ctx context.Context, userID string, newPasswordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, newPasswordHash, userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteUserRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (r *sqliteUserRepo) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *sqliteUserRepo) ListForAdmin(ctx context.Context, limit, offset int) ([]models.AdminUserListItem, error) {
	query := `
		SELECT u.id, u.username, u.display_name, u.avatar_url, u.status, u.is_platform_admin,
		       (SELECT COUNT(*) FROM messages WHERE user_id = u.id),
		       (SELECT COUNT(*) FROM server_members WHERE user_id = u.id),
		       (SELECT COUNT(*) FROM servers WHERE owner_id = u.id),
		       (SELECT COUNT(*) FROM bans WHERE user_id = u.id),
		       u.created_at
		FROM users u
		ORDER BY u.created_at DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users for admin: %w", err)
	}
	defer rows.Close()

	var items []models.AdminUserListItem
	for rows.Next() {
		var item models.AdminUserListItem
		if err := rows.Scan(
			&item.ID, &item.Username, &item.DisplayName, &item.AvatarURL,
			&item.Status, &item.IsPlatformAdmin,
			&item.MessageCount, &item.ServerCount, &item.OwnedServers, &item.BanCount,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan admin user row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *sqliteUserRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(result)
}
