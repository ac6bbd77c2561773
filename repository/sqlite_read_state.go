package repository

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
)

type sqliteReadStateRepo struct {
	db database.TxQuerier
}

func NewSQLiteReadStateRepo(db database.TxQuerier) ReadStateRepository {
	return &sqliteReadStateRepo{db: db}
}

func (r *sqliteReadStateRepo) Upsert(ctx context.Context, userID, channelID string, messageID *string) error {
	query := `
		INSERT INTO read_states (user_id, channel_id, last_read_message_id, last_read_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, channel_id) DO UPDATE SET
			last_read_message_id = excluded.last_read_message_id,
			last_read_at = excluded.last_read_at`

	if _, err := r.db.ExecContext(ctx, query, userID, channelID, messageID); err != nil {
		return fmt.Errorf("upsert read state: %w", err)
	}
	return nil
}

// UnreadCounts counts messages strictly newer than the last-read marker. A
// channel with no read_states row counts everything. The user's own messages
// never count as unread.
func (r *sqliteReadStateRepo) UnreadCounts(ctx context.Context, userID string, channelIDs []string) (map[string]models.UnreadInfo, error) {
	result := make(map[string]models.UnreadInfo, len(channelIDs))
	if len(channelIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT m.channel_id,
		       COUNT(*),
		       COUNT(mn.user_id)
		FROM messages m
		LEFT JOIN read_states rs
		       ON rs.user_id = ? AND rs.channel_id = m.channel_id
		LEFT JOIN messages lr ON lr.id = rs.last_read_message_id
		LEFT JOIN mentions mn
		       ON mn.message_id = m.id AND mn.user_id = ?
		WHERE m.channel_id IN (` + placeholders(len(channelIDs)) + `)
		  AND m.user_id != ?
		  AND (lr.id IS NULL OR (m.created_at, m.id) > (lr.created_at, lr.id))
		GROUP BY m.channel_id`

	args := append([]any{userID, userID}, toAnySlice(channelIDs)...)
	args = append(args, userID)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var info models.UnreadInfo
		if err := rows.Scan(&info.ChannelID, &info.UnreadCount, &info.MentionCount); err != nil {
			return nil, fmt.Errorf("scan unread row: %w", err)
		}
		result[info.ChannelID] = info
	}
	return result, rows.Err()
}

// MarkAllRead acks every listed channel at its newest message in one
// statement, so a reader never sees half the channels acked.
func (r *sqliteReadStateRepo) MarkAllRead(ctx context.Context, userID string, channelIDs []string) error {
	if len(channelIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO read_states (user_id, channel_id, last_read_message_id, last_read_at)
		SELECT ?, c.id,
			(SELECT m.id FROM messages m WHERE m.channel_id = c.id
			 ORDER BY m.created_at DESC, m.id DESC LIMIT 1),
			CURRENT_TIMESTAMP
		FROM channels c
		WHERE c.id IN (` + placeholders(len(channelIDs)) + `)
		ON CONFLICT (user_id, channel_id) DO UPDATE SET
			last_read_message_id = excluded.last_read_message_id,
			last_read_at = excluded.last_read_at`

	args := append([]any{userID}, toAnySlice(channelIDs)...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}
