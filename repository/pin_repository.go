package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// PinRepository stores channel pins. A message may be pinned at most once;
// the service enforces the per-channel cap.
type PinRepository interface {
	Pin(ctx context.Context, pin *models.PinnedMessage) error
	Unpin(ctx context.Context, messageID string) error
	IsPinned(ctx context.Context, messageID string) (bool, error)
	CountByChannel(ctx context.Context, channelID string) (int, error)
	// ListByChannel returns pins newest-first with the pinned message and
	// the pinning user joined in.
	ListByChannel(ctx context.Context, channelID string) ([]models.PinnedMessageWithDetails, error)
}
