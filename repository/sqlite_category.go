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

type sqliteCategoryRepo struct {
	db *sql.DB
}

func NewSQLiteCategoryRepo(db *sql.DB) CategoryRepository {
	return &sqliteCategoryRepo{db: db}
}

func (r *sqliteCategoryRepo) Create(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (id, server_id, name, position)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		category.ServerID, category.Name, category.Position,
	).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (r *sqliteCategoryRepo) GetByID(ctx context.Context, id string) (*models.Category, error) {
	query := `
		SELECT id, server_id, name, position, created_at
		FROM categories WHERE id = ?`

	c := &models.Category{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.ServerID, &c.Name, &c.Position, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *sqliteCategoryRepo) ListByServer(ctx context.Context, serverID string) ([]models.Category, error) {
	query := `
		SELECT id, server_id, name, position, created_at
		FROM categories WHERE server_id = ?
		ORDER BY position, created_at`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.ServerID, &c.Name, &c.Position, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *sqliteCategoryRepo) Update(ctx context.Context, category *models.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ? WHERE id = ?`,
		category.Name, category.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteCategoryRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteCategoryRepo) MaxPosition(ctx context.Context, serverID string) (int, error) {
	var max int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) FROM categories WHERE server_id = ?`,
		serverID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max category position: %w", err)
	}
	return max, nil
}

func (r *sqliteCategoryRepo) UpdatePositions(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, item := range items {
			if _, err := tx.ExecContext(ctx,
				`UPDATE categories SET position = ? WHERE id = ? AND server_id = ?`,
				item.Position, item.ID, serverID); err != nil {
				return fmt.Errorf("update category position: %w", err)
			}
		}
		return nil
	})
}
