package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// MessageRepository stores channel messages. History reads page backwards
// with a before-id cursor; enrichment (authors, attachments, reactions) is
// layered on by the service.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// ListByChannel returns up to limit messages older than beforeID (all
	// newest-first when beforeID is empty), ordered oldest to newest.
	ListByChannel(ctx context.Context, channelID, beforeID string, limit int) ([]models.Message, error)
	UpdateContent(ctx context.Context, id, content string) (*models.Message, error)
	Delete(ctx context.Context, id string) error
}
