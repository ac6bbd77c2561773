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

const messageColumns = `id, channel_id, user_id, content, reply_to_id, is_pinned, edited_at, created_at`

type sqliteMessageRepo struct {
	db database.TxQuerier
}

func NewSQLiteMessageRepo(db database.TxQuerier) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

func scanMessage(row interface{ Scan(...any) error }) (*models.Message, error) {
	msg := &models.Message{}
	err := row.Scan(
		&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Content,
		&msg.ReplyToID, &msg.IsPinned, &msg.EditedAt, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *sqliteMessageRepo) Create(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, channel_id, user_id, content, reply_to_id)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		msg.ChannelID, msg.UserID, msg.Content, msg.ReplyToID,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *sqliteMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	msg, err := scanMessage(r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

func (r *sqliteMessageRepo) ListByChannel(ctx context.Context, channelID, beforeID string, limit int) ([]models.Message, error) {
	// Cursor on (created_at, id): ids are random, so created_at carries the
	// order and id breaks ties.
	query := `SELECT ` + messageColumns + ` FROM messages WHERE channel_id = ?`
	args := []any{channelID}

	if beforeID != "" {
		query += ` AND (created_at, id) < (SELECT created_at, id FROM messages WHERE id = ?)`
		args = append(args, beforeID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Fetched newest-first, returned oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *sqliteMessageRepo) UpdateContent(ctx context.Context, id, content string) (*models.Message, error) {
	query := `
		UPDATE messages SET content = ?, edited_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING ` + messageColumns

	msg, err := scanMessage(r.db.QueryRowContext(ctx, query, content, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}
	return msg, nil
}

func (r *sqliteMessageRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireAffected(result)
}
