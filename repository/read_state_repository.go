package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// ReadStateRepository tracks the last message each user has read per channel.
type ReadStateRepository interface {
	// Upsert records that the user has read up to messageID. messageID may
	// be empty when a channel with no messages is acked.
	Upsert(ctx context.Context, userID, channelID string, messageID *string) error
	// UnreadCounts returns unread and mention counts for every channel of
	// the given servers the user can see, keyed by channel id.
	UnreadCounts(ctx context.Context, userID string, channelIDs []string) (map[string]models.UnreadInfo, error)
	// MarkAllRead acks every listed channel at its newest message.
	MarkAllRead(ctx context.Context, userID string, channelIDs []string) error
}
