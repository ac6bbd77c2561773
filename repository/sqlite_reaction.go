package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
)

type sqliteReactionRepo struct {
	db database.TxQuerier
}

func NewSQLiteReactionRepo(db database.TxQuerier) ReactionRepository {
	return &sqliteReactionRepo{db: db}
}

// Toggle relies on the UNIQUE(message_id, user_id, emoji) constraint: the
// insert is attempted first, and a zero-row OR IGNORE means the reaction
// already existed and should be removed instead.
func (r *sqliteReactionRepo) Toggle(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reactions (id, message_id, user_id, emoji)
		 VALUES (lower(hex(randomblob(8))), ?, ?, ?)`,
		messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("add reaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM reactions WHERE message_id = ? AND user_id = ? AND emoji = ?`,
		messageID, userID, emoji); err != nil {
		return false, fmt.Errorf("remove reaction: %w", err)
	}
	return false, nil
}

func (r *sqliteReactionRepo) GetByMessageID(ctx context.Context, messageID string) ([]models.ReactionGroup, error) {
	byMessage, err := r.GetByMessageIDs(ctx, []string{messageID})
	if err != nil {
		return nil, err
	}
	groups := byMessage[messageID]
	if groups == nil {
		groups = []models.ReactionGroup{}
	}
	return groups, nil
}

func (r *sqliteReactionRepo) GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.ReactionGroup, error) {
	result := make(map[string][]models.ReactionGroup, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT re.message_id, re.emoji, COUNT(*), GROUP_CONCAT(u.username)
		FROM reactions re
		JOIN users u ON u.id = re.user_id
		WHERE re.message_id IN (` + placeholders(len(messageIDs)) + `)
		GROUP BY re.message_id, re.emoji
		ORDER BY MIN(re.created_at)`

	rows, err := r.db.QueryContext(ctx, query, toAnySlice(messageIDs)...)
	if err != nil {
		return nil, fmt.Errorf("get reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, users string
		group := models.ReactionGroup{}
		if err := rows.Scan(&messageID, &group.Emoji, &group.Count, &users); err != nil {
			return nil, fmt.Errorf("scan reaction row: %w", err)
		}
		group.Users = strings.Split(users, ",")
		result[messageID] = append(result[messageID], group)
	}
	return result, rows.Err()
}
