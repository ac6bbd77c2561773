package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// SearchRepository runs full-text queries against the FTS5 shadow tables.
// Queries arrive pre-tokenized by the service (quote-wrapped, prefix-starred)
// so user input can never change the FTS grammar.
type SearchRepository interface {
	// SearchServer searches every channel of a server the caller can see.
	// channelID narrows to one channel when non-empty.
	SearchServer(ctx context.Context, serverID, channelID, ftsQuery string, limit, offset int) ([]models.Message, int, error)
	// SearchDM searches one DM channel.
	SearchDM(ctx context.Context, dmChannelID, ftsQuery string, limit, offset int) ([]models.DMMessage, int, error)
}
