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

const channelColumns = `id, server_id, category_id, name, type, topic,
	position, user_limit, bitrate, created_at`

type sqliteChannelRepo struct {
	db *sql.DB
}

func NewSQLiteChannelRepo(db *sql.DB) ChannelRepository {
	return &sqliteChannelRepo{db: db}
}

func scanChannel(row interface{ Scan(...any) error }) (*models.Channel, error) {
	c := &models.Channel{}
	err := row.Scan(
		&c.ID, &c.ServerID, &c.CategoryID, &c.Name, &c.Type, &c.Topic,
		&c.Position, &c.UserLimit, &c.Bitrate, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *sqliteChannelRepo) Create(ctx context.Context, channel *models.Channel) error {
	query := `
		INSERT INTO channels (id, server_id, category_id, name, type, topic, position, user_limit, bitrate)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		channel.ServerID, channel.CategoryID, channel.Name, channel.Type,
		channel.Topic, channel.Position, channel.UserLimit, channel.Bitrate,
	).Scan(&channel.ID, &channel.CreatedAt)
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	return nil
}

func (r *sqliteChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	c, err := scanChannel(r.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return c, nil
}

func (r *sqliteChannelRepo) ListByServer(ctx context.Context, serverID string) ([]models.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels
		WHERE server_id = ?
		ORDER BY position, created_at`

	rows, err := r.db.QueryContext(ctx, query, serverID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []models.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		channels = append(channels, *c)
	}
	return channels, rows.Err()
}

func (r *sqliteChannelRepo) Update(ctx context.Context, channel *models.Channel) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE channels SET category_id = ?, name = ?, topic = ?, user_limit = ?, bitrate = ? WHERE id = ?`,
		channel.CategoryID, channel.Name, channel.Topic,
		channel.UserLimit, channel.Bitrate, channel.ID)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteChannelRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteChannelRepo) MaxPosition(ctx context.Context, serverID string, categoryID *string) (int, error) {
	var max int
	var err error
	if categoryID == nil {
		err = r.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) FROM channels WHERE server_id = ? AND category_id IS NULL`,
			serverID).Scan(&max)
	} else {
		err = r.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) FROM channels WHERE server_id = ? AND category_id = ?`,
			serverID, *categoryID).Scan(&max)
	}
	if err != nil {
		return 0, fmt.Errorf("max channel position: %w", err)
	}
	return max, nil
}

func (r *sqliteChannelRepo) UpdatePositions(ctx context.Context, serverID string, items []models.PositionUpdate) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, item := range items {
			if _, err := tx.ExecContext(ctx,
				`UPDATE channels SET position = ? WHERE id = ? AND server_id = ?`,
				item.Position, item.ID, serverID); err != nil {
				return fmt.Errorf("update channel position: %w", err)
			}
		}
		return nil
	})
}
