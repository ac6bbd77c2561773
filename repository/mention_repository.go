package repository

import "context"

// MentionRepository stores the users a message mentions, resolved from
// @username tokens at send time.
type MentionRepository interface {
	// Save replaces the mention set of a message.
	Save(ctx context.Context, messageID string, userIDs []string) error
	GetByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]string, error)
}
