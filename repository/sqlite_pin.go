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

type sqlitePinRepo struct {
	db database.TxQuerier
}

func NewSQLitePinRepo(db database.TxQuerier) PinRepository {
	return &sqlitePinRepo{db: db}
}

func (r *sqlitePinRepo) Pin(ctx context.Context, pin *models.PinnedMessage) error {
	query := `
		INSERT INTO pinned_messages (id, message_id, channel_id, pinned_by)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		pin.MessageID, pin.ChannelID, pin.PinnedBy,
	).Scan(&pin.ID, &pin.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: message is already pinned", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("pin message: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_pinned = 1 WHERE id = ?`, pin.MessageID); err != nil {
		return fmt.Errorf("mark message pinned: %w", err)
	}
	return nil
}

func (r *sqlitePinRepo) Unpin(ctx context.Context, messageID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM pinned_messages WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("unpin message: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_pinned = 0 WHERE id = ?`, messageID); err != nil {
		return fmt.Errorf("mark message unpinned: %w", err)
	}
	return nil
}

func (r *sqlitePinRepo) IsPinned(ctx context.Context, messageID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM pinned_messages WHERE message_id = ?`, messageID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check pin: %w", err)
	}
	return true, nil
}

func (r *sqlitePinRepo) CountByChannel(ctx context.Context, channelID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pinned_messages WHERE channel_id = ?`,
		channelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pins: %w", err)
	}
	return count, nil
}

func (r *sqlitePinRepo) ListByChannel(ctx context.Context, channelID string) ([]models.PinnedMessageWithDetails, error) {
	query := `
		SELECT p.id, p.message_id, p.channel_id, p.pinned_by, p.created_at,
		       m.id, m.channel_id, m.user_id, m.content, m.reply_to_id,
		       m.is_pinned, m.edited_at, m.created_at,
		       u.id, u.username, u.display_name, u.avatar_url, u.status,
		       u.custom_status, u.created_at
		FROM pinned_messages p
		JOIN messages m ON m.id = p.message_id
		LEFT JOIN users u ON u.id = p.pinned_by
		WHERE p.channel_id = ?
		ORDER BY p.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}
	defer rows.Close()

	var pins []models.PinnedMessageWithDetails
	for rows.Next() {
		var p models.PinnedMessageWithDetails
		msg := models.Message{}
		var (
			pinner                      models.PublicUser
			pinnerID, pinnerUsername    *string
			pinnerDisplay, pinnerAvatar *string
			pinnerStatus, pinnerCustom  *string
			pinnerCreated               sql.NullTime
		)
		if err := rows.Scan(
			&p.ID, &p.MessageID, &p.ChannelID, &p.PinnedBy, &p.CreatedAt,
			&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Content, &msg.ReplyToID,
			&msg.IsPinned, &msg.EditedAt, &msg.CreatedAt,
			&pinnerID, &pinnerUsername, &pinnerDisplay, &pinnerAvatar,
			&pinnerStatus, &pinnerCustom, &pinnerCreated,
		); err != nil {
			return nil, fmt.Errorf("scan pin row: %w", err)
		}
		p.Message = &msg
		if pinnerID != nil {
			pinner.ID = *pinnerID
			pinner.Username = *pinnerUsername
			pinner.DisplayName = pinnerDisplay
			pinner.AvatarURL = pinnerAvatar
			if pinnerStatus != nil {
				pinner.Status = models.UserStatus(*pinnerStatus)
			}
			pinner.CustomStatus = pinnerCustom
			pinner.CreatedAt = pinnerCreated.Time
			p.PinnedByUser = &pinner
		}
		pins = append(pins, p)
	}
	return pins, rows.Err()
}
