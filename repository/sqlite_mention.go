package repository

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/database"
)

type sqliteMentionRepo struct {
	db database.TxQuerier
}

func NewSQLiteMentionRepo(db database.TxQuerier) MentionRepository {
	return &sqliteMentionRepo{db: db}
}

func (r *sqliteMentionRepo) Save(ctx context.Context, messageID string, userIDs []string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM mentions WHERE message_id = ?`, messageID); err != nil {
		return fmt.Errorf("clear mentions: %w", err)
	}
	for _, userID := range userIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO mentions (message_id, user_id) VALUES (?, ?)`,
			messageID, userID); err != nil {
			return fmt.Errorf("save mention: %w", err)
		}
	}
	return nil
}

func (r *sqliteMentionRepo) GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT message_id, user_id FROM mentions
		WHERE message_id IN (` + placeholders(len(messageIDs)) + `)`

	rows, err := r.db.QueryContext(ctx, query, toAnySlice(messageIDs)...)
	if err != nil {
		return nil, fmt.Errorf("get mentions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, userID string
		if err := rows.Scan(&messageID, &userID); err != nil {
			return nil, fmt.Errorf("scan mention row: %w", err)
		}
		result[messageID] = append(result[messageID], userID)
	}
	return result, rows.Err()
}
