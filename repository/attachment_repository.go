package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// AttachmentRepository stores file attachment rows. The bytes live on disk
// under the uploads root; rows only carry metadata and the serving URL.
type AttachmentRepository interface {
	Create(ctx context.Context, att *models.Attachment) error
	GetByMessageID(ctx context.Context, messageID string) ([]models.Attachment, error)
	// GetByMessageIDs batch-loads attachments for a page of messages.
	GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.Attachment, error)
}
