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

const dmMessageColumns = `id, dm_channel_id, user_id, content, reply_to_id, is_pinned, edited_at, created_at`

type sqliteDMRepo struct {
	db database.TxQuerier
}

func NewSQLiteDMRepo(db database.TxQuerier) DMRepository {
	return &sqliteDMRepo{db: db}
}

func scanDMMessage(row interface{ Scan(...any) error }) (*models.DMMessage, error) {
	msg := &models.DMMessage{}
	err := row.Scan(
		&msg.ID, &msg.DMChannelID, &msg.UserID, &msg.Content,
		&msg.ReplyToID, &msg.IsPinned, &msg.EditedAt, &msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetOrCreateChannel canonicalizes the pair before the upsert so concurrent
// first messages from both sides land on the same row.
func (r *sqliteDMRepo) GetOrCreateChannel(ctx context.Context, userA, userB string) (*models.DMChannel, error) {
	if userA == userB {
		return nil, fmt.Errorf("%w: cannot open a conversation with yourself", pkg.ErrInvalidInput)
	}
	user1, user2 := userA, userB
	if user1 > user2 {
		user1, user2 = user2, user1
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dm_channels (id, user1_id, user2_id)
		 VALUES (lower(hex(randomblob(8))), ?, ?)`,
		user1, user2); err != nil {
		return nil, fmt.Errorf("create dm channel: %w", err)
	}

	ch := &models.DMChannel{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user1_id, user2_id, created_at
		 FROM dm_channels WHERE user1_id = ? AND user2_id = ?`,
		user1, user2,
	).Scan(&ch.ID, &ch.User1ID, &ch.User2ID, &ch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get dm channel: %w", err)
	}
	return ch, nil
}

func (r *sqliteDMRepo) GetChannel(ctx context.Context, id string) (*models.DMChannel, error) {
	ch := &models.DMChannel{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user1_id, user2_id, created_at FROM dm_channels WHERE id = ?`,
		id,
	).Scan(&ch.ID, &ch.User1ID, &ch.User2ID, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dm channel: %w", err)
	}
	return ch, nil
}

func (r *sqliteDMRepo) ListChannels(ctx context.Context, userID string) ([]models.DMChannelWithUser, error) {
	// last_message_at is derived, not stored: the newest dm_messages row
	// orders the sidebar.
	query := `
		SELECT c.id, c.created_at,
		       (SELECT MAX(m.created_at) FROM dm_messages m WHERE m.dm_channel_id = c.id),
		       u.id, u.username, u.display_name, u.avatar_url, u.status,
		       u.custom_status, u.created_at
		FROM dm_channels c
		JOIN users u ON u.id = CASE WHEN c.user1_id = ? THEN c.user2_id ELSE c.user1_id END
		WHERE c.user1_id = ? OR c.user2_id = ?
		ORDER BY COALESCE(
			(SELECT MAX(m.created_at) FROM dm_messages m WHERE m.dm_channel_id = c.id),
			c.created_at) DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list dm channels: %w", err)
	}
	defer rows.Close()

	var channels []models.DMChannelWithUser
	for rows.Next() {
		var ch models.DMChannelWithUser
		other := &models.PublicUser{}
		if err := rows.Scan(
			&ch.ID, &ch.CreatedAt, &ch.LastMessageAt,
			&other.ID, &other.Username, &other.DisplayName, &other.AvatarURL,
			&other.Status, &other.CustomStatus, &other.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dm channel row: %w", err)
		}
		ch.OtherUser = other
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (r *sqliteDMRepo) CreateMessage(ctx context.Context, msg *models.DMMessage) error {
	query := `
		INSERT INTO dm_messages (id, dm_channel_id, user_id, content, reply_to_id)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		msg.DMChannelID, msg.UserID, msg.Content, msg.ReplyToID,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("create dm message: %w", err)
	}
	return nil
}

func (r *sqliteDMRepo) GetMessage(ctx context.Context, id string) (*models.DMMessage, error) {
	msg, err := scanDMMessage(r.db.QueryRowContext(ctx,
		`SELECT `+dmMessageColumns+` FROM dm_messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dm message: %w", err)
	}
	return msg, nil
}

func (r *sqliteDMRepo) ListMessages(ctx context.Context, channelID, beforeID string, limit int) ([]models.DMMessage, error) {
	query := `SELECT ` + dmMessageColumns + ` FROM dm_messages WHERE dm_channel_id = ?`
	args := []any{channelID}

	if beforeID != "" {
		query += ` AND (created_at, id) < (SELECT created_at, id FROM dm_messages WHERE id = ?)`
		args = append(args, beforeID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dm messages: %w", err)
	}
	defer rows.Close()

	var messages []models.DMMessage
	for rows.Next() {
		msg, err := scanDMMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dm message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *sqliteDMRepo) UpdateMessageContent(ctx context.Context, id, content string) (*models.DMMessage, error) {
	query := `
		UPDATE dm_messages SET content = ?, edited_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING ` + dmMessageColumns

	msg, err := scanDMMessage(r.db.QueryRowContext(ctx, query, content, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update dm message: %w", err)
	}
	return msg, nil
}

func (r *sqliteDMRepo) DeleteMessage(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM dm_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete dm message: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteDMRepo) CreateAttachment(ctx context.Context, att *models.DMAttachment) error {
	query := `
		INSERT INTO dm_attachments (id, dm_message_id, filename, file_url, file_size, mime_type)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		att.DMMessageID, att.Filename, att.FileURL, att.FileSize, att.MimeType,
	).Scan(&att.ID, &att.CreatedAt)
	if err != nil {
		return fmt.Errorf("create dm attachment: %w", err)
	}
	return nil
}

func (r *sqliteDMRepo) GetAttachmentsByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.DMAttachment, error) {
	result := make(map[string][]models.DMAttachment, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id, dm_message_id, filename, file_url, file_size, mime_type, created_at
		FROM dm_attachments
		WHERE dm_message_id IN (` + placeholders(len(messageIDs)) + `)
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, toAnySlice(messageIDs)...)
	if err != nil {
		return nil, fmt.Errorf("get dm attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.DMAttachment
		if err := rows.Scan(
			&a.ID, &a.DMMessageID, &a.Filename, &a.FileURL,
			&a.FileSize, &a.MimeType, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dm attachment row: %w", err)
		}
		result[a.DMMessageID] = append(result[a.DMMessageID], a)
	}
	return result, rows.Err()
}

func (r *sqliteDMRepo) ToggleReaction(ctx context.Context, messageID, userID, emoji string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO dm_reactions (id, dm_message_id, user_id, emoji)
		 VALUES (lower(hex(randomblob(8))), ?, ?, ?)`,
		messageID, userID, emoji)
	if err != nil {
		return false, fmt.Errorf("add dm reaction: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM dm_reactions WHERE dm_message_id = ? AND user_id = ? AND emoji = ?`,
		messageID, userID, emoji); err != nil {
		return false, fmt.Errorf("remove dm reaction: %w", err)
	}
	return false, nil
}

func (r *sqliteDMRepo) GetReactionsByMessageID(ctx context.Context, messageID string) ([]models.ReactionGroup, error) {
	byMessage, err := r.GetReactionsByMessageIDs(ctx, []string{messageID})
	if err != nil {
		return nil, err
	}
	groups := byMessage[messageID]
	if groups == nil {
		groups = []models.ReactionGroup{}
	}
	return groups, nil
}

func (r *sqliteDMRepo) GetReactionsByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.ReactionGroup, error) {
	result := make(map[string][]models.ReactionGroup, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT re.dm_message_id, re.emoji, COUNT(*), GROUP_CONCAT(u.username)
		FROM dm_reactions re
		JOIN users u ON u.id = re.user_id
		WHERE re.dm_message_id IN (` + placeholders(len(messageIDs)) + `)
		GROUP BY re.dm_message_id, re.emoji
		ORDER BY MIN(re.created_at)`

	rows, err := r.db.QueryContext(ctx, query, toAnySlice(messageIDs)...)
	if err != nil {
		return nil, fmt.Errorf("get dm reactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID, users string
		group := models.ReactionGroup{}
		if err := rows.Scan(&messageID, &group.Emoji, &group.Count, &users); err != nil {
			return nil, fmt.Errorf("scan dm reaction row: %w", err)
		}
		group.Users = strings.Split(users, ",")
		result[messageID] = append(result[messageID], group)
	}
	return result, rows.Err()
}

// DM pins are a flag on the message row, not a separate table: there is no
// per-channel pin audit trail to keep for a two-person conversation.
func (r *sqliteDMRepo) PinMessage(ctx context.Context, messageID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE dm_messages SET is_pinned = 1 WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("pin dm message: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteDMRepo) UnpinMessage(ctx context.Context, messageID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE dm_messages SET is_pinned = 0 WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("unpin dm message: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteDMRepo) ListPinnedMessages(ctx context.Context, channelID string) ([]models.DMMessage, error) {
	query := `SELECT ` + dmMessageColumns + ` FROM dm_messages
		WHERE dm_channel_id = ? AND is_pinned = 1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list pinned dm messages: %w", err)
	}
	defer rows.Close()

	var messages []models.DMMessage
	for rows.Next() {
		msg, err := scanDMMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dm message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}
