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

const roleColumns = `id, server_id, name, color, position, permissions, is_default, created_at`

type sqliteRoleRepo struct {
	db *sql.DB
}

func NewSQLiteRoleRepo(db *sql.DB) RoleRepository {
	return &sqliteRoleRepo{db: db}
}

func scanRole(row interface{ Scan(...any) error }) (*models.Role, error) {
	role := &models.Role{}
	err := row.Scan(
		&role.ID, &role.ServerID, &role.Name, &role.Color, &role.Position,
		&role.Permissions, &role.IsDefault, &role.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (r *sqliteRoleRepo) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

func (r *sqliteRoleRepo) ListByServer(ctx context.Context, serverID string) ([]models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles
		WHERE server_id = ?
		ORDER BY position DESC, created_at`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (r *sqliteRoleRepo) GetDefault(ctx context.Context, serverID string) (*models.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE server_id = ? AND is_default = 1`, serverID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default role: %w", err)
	}
	return role, nil
}

// GetByUser includes the default role unconditionally: every member holds it
// without a user_roles row.
func (r *sqliteRoleRepo) GetByUser(ctx context.Context, serverID, userID string) ([]models.Role, error) {
	query := `
		SELECT ` + roleColumns + ` FROM roles
		WHERE server_id = ? AND (is_default = 1 OR id IN (
			SELECT role_id FROM user_roles WHERE user_id = ? AND server_id = ?))
		ORDER BY position DESC`

	rows, err := r.db.QueryContext(ctx, query, serverID, userID, serverID)
	if err != nil {
		return nil, fmt.Errorf("get user roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role row: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (r *sqliteRoleRepo) GetByUsers(ctx context.Context, serverID string, userIDs []string) (map[string][]models.Role, error) {
	result := make(map[string][]models.Role, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	// Assigned roles in one query; the shared default role is appended to
	// every user afterwards.
	query := `
		SELECT ur.user_id, ` + prefixedRoleColumns("r") + `
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.server_id = ? AND ur.user_id IN (` + placeholders(len(userIDs)) + `)
		ORDER BY r.position DESC`

	args := append([]any{serverID}, toAnySlice(userIDs)...)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get roles by users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		role := models.Role{}
		if err := rows.Scan(
			&userID, &role.ID, &role.ServerID, &role.Name, &role.Color,
			&role.Position, &role.Permissions, &role.IsDefault, &role.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user role row: %w", err)
		}
		result[userID] = append(result[userID], role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	def, err := r.GetDefault(ctx, serverID)
	if err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		result[id] = append(result[id], *def)
	}
	return result, nil
}

func (r *sqliteRoleRepo) MaxPosition(ctx context.Context, serverID string) (int, error) {
	var max int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM roles WHERE server_id = ?`,
		serverID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max role position: %w", err)
	}
	return max, nil
}

func (r *sqliteRoleRepo) Create(ctx context.Context, role *models.Role) error {
	query := `
		INSERT INTO roles (id, server_id, name, color, position, permissions, is_default)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		role.ServerID, role.Name, role.Color, role.Position,
		role.Permissions, role.IsDefault,
	).Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: server already has a default role", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) Update(ctx context.Context, role *models.Role) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE roles SET name = ?, color = ?, permissions = ? WHERE id = ?`,
		role.Name, role.Color, role.Permissions, role.ID)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireAffected(result)
}

// Delete is guarded in SQL: the default role never matches, so deleting it
// reports forbidden instead of silently cascading member permissions away.
func (r *sqliteRoleRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM roles WHERE id = ? AND is_default = 0`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var isDefault bool
		err := r.db.QueryRowContext(ctx,
			`SELECT is_default FROM roles WHERE id = ?`, id).Scan(&isDefault)
		if errors.Is(err, sql.ErrNoRows) {
			return pkg.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("delete role check: %w", err)
		}
		return fmt.Errorf("%w: the default role cannot be deleted", pkg.ErrForbidden)
	}
	return nil
}

func (r *sqliteRoleRepo) UpdatePositions(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, item := range items {
			if _, err := tx.ExecContext(ctx,
				`UPDATE roles SET position = ? WHERE id = ? AND server_id = ?`,
				item.Position, item.ID, serverID); err != nil {
				return fmt.Errorf("update role position: %w", err)
			}
		}
		return nil
	})
}

func (r *sqliteRoleRepo) AssignToUser(ctx context.Context, serverID, userID, roleID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role_id, server_id) VALUES (?, ?, ?)`,
		userID, roleID, serverID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (r *sqliteRoleRepo) RemoveFromUser(ctx context.Context, userID, roleID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = ? AND role_id = ?`,
		userID, roleID); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	return nil
}

// prefixedRoleColumns qualifies the role column list with a table alias for
// joined queries.
func prefixedRoleColumns(alias string) string {
	return alias + `.id, ` + alias + `.server_id, ` + alias + `.name, ` +
		alias + `.color, ` + alias + `.position, ` + alias + `.permissions, ` +
		alias + `.is_default, ` + alias + `.created_at`
}
