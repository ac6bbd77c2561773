package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// ReactionRepository stores emoji reactions. Toggle semantics: reacting with
// an emoji you already used removes it.
type ReactionRepository interface {
	// Toggle adds the reaction if absent, removes it if present, and
	// reports whether it is present afterwards.
	Toggle(ctx context.Context, messageID, userID, emoji string) (added bool, err error)
	// GetByMessageID returns reactions grouped by emoji, usernames included.
	GetByMessageID(ctx context.Context, messageID string) ([]models.ReactionGroup, error)
	// GetByMessageIDs batch-loads grouped reactions for a page of messages.
	GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.ReactionGroup, error)
}
