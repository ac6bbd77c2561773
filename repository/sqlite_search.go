package repository

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
)

type sqliteSearchRepo struct {
	db database.TxQuerier
}

func NewSQLiteSearchRepo(db database.TxQuerier) SearchRepository {
	return &sqliteSearchRepo{db: db}
}

func (r *sqliteSearchRepo) SearchServer(ctx context.Context, serverID, channelID, ftsQuery string, limit, offset int) ([]models.Message, int, error) {
	where := `c.server_id = ?`
	countArgs := []any{ftsQuery, serverID}
	if channelID != "" {
		where += ` AND m.channel_id = ?`
		countArgs = append(countArgs, channelID)
	}

	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		JOIN channels c ON c.id = m.channel_id
		WHERE messages_fts MATCH ? AND ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search hits: %w", err)
	}

	query := `
		SELECT m.id, m.channel_id, m.user_id, m.content, m.reply_to_id,
		       m.is_pinned, m.edited_at, m.created_at,
		       snippet(messages_fts, 0, '<mark>', '</mark>', '…', 12)
		FROM messages_fts f
		JOIN messages m ON m.rowid = f.rowid
		JOIN channels c ON c.id = m.channel_id
		WHERE messages_fts MATCH ? AND ` + where + `
		ORDER BY m.created_at DESC
		LIMIT ? OFFSET ?`

	args := append(countArgs, limit, offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Content, &msg.ReplyToID,
			&msg.IsPinned, &msg.EditedAt, &msg.CreatedAt, &msg.Snippet,
		); err != nil {
			return nil, 0, fmt.Errorf("scan search row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, total, rows.Err()
}

func (r *sqliteSearchRepo) SearchDM(ctx context.Context, dmChannelID, ftsQuery string, limit, offset int) ([]models.DMMessage, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(*)
		FROM dm_messages_fts f
		JOIN dm_messages m ON m.rowid = f.rowid
		WHERE dm_messages_fts MATCH ? AND m.dm_channel_id = ?`
	if err := r.db.QueryRowContext(ctx, countQuery, ftsQuery, dmChannelID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count dm search hits: %w", err)
	}

	query := `
		SELECT m.id, m.dm_channel_id, m.user_id, m.content, m.reply_to_id,
		       m.is_pinned, m.edited_at, m.created_at,
		       snippet(dm_messages_fts, 0, '<mark>', '</mark>', '…', 12)
		FROM dm_messages_fts f
		JOIN dm_messages m ON m.rowid = f.rowid
		WHERE dm_messages_fts MATCH ? AND m.dm_channel_id = ?
		ORDER BY m.created_at DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, ftsQuery, dmChannelID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search dm messages: %w", err)
	}
	defer rows.Close()

	var messages []models.DMMessage
	for rows.Next() {
		var msg models.DMMessage
		if err := rows.Scan(
			&msg.ID, &msg.DMChannelID, &msg.UserID, &msg.Content, &msg.ReplyToID,
			&msg.IsPinned, &msg.EditedAt, &msg.CreatedAt, &msg.Snippet,
		); err != nil {
			return nil, 0, fmt.Errorf("scan dm search row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, total, rows.Err()
}
