package repository

import (
	"context"
	"fmt"

	"github.com/chorushq/chorus/database"
	"github.com/chorushq/chorus/models"
)

type sqliteAttachmentRepo struct {
	db database.TxQuerier
}

func NewSQLiteAttachmentRepo(db database.TxQuerier) AttachmentRepository {
	return &sqliteAttachmentRepo{db: db}
}

func (r *sqliteAttachmentRepo) Create(ctx context.Context, att *models.Attachment) error {
	query := `
		INSERT INTO attachments (id, message_id, filename, file_url, file_size, mime_type)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		att.MessageID, att.Filename, att.FileURL, att.FileSize, att.MimeType,
	).Scan(&att.ID, &att.CreatedAt)
	if err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

func (r *sqliteAttachmentRepo) GetByMessageID(ctx context.Context, messageID string) ([]models.Attachment, error) {
	byMessage, err := r.GetByMessageIDs(ctx, []string{messageID})
	if err != nil {
		return nil, err
	}
	return byMessage[messageID], nil
}

func (r *sqliteAttachmentRepo) GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.Attachment, error) {
	result := make(map[string][]models.Attachment, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id, message_id, filename, file_url, file_size, mime_type, created_at
		FROM attachments
		WHERE message_id IN (` + placeholders(len(messageIDs)) + `)
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, toAnySlice(messageIDs)...)
	if err != nil {
		return nil, fmt.Errorf("get attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(
			&a.ID, &a.MessageID, &a.Filename, &a.FileURL,
			&a.FileSize, &a.MimeType, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attachment row: %w", err)
		}
		result[a.MessageID] = append(result[a.MessageID], a)
	}
	return result, rows.Err()
}
