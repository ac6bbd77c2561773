package repository

import (
	"context"

	"github.com/chorushq/chorus/models"
)

// DMRepository covers the direct-message tables: channels, messages,
// attachments, reactions and pins. Channel rows are canonical per pair.
type DMRepository interface {
	// GetOrCreateChannel returns the channel for the pair, creating it on
	// first contact. Order of the two ids does not matter.
	GetOrCreateChannel(ctx context.Context, userA, userB string) (*models.DMChannel, error)
	GetChannel(ctx context.Context, id string) (*models.DMChannel, error)
	// ListChannels returns the user's DM sidebar, most recent activity
	// first, with the other participant's profile joined in.
	ListChannels(ctx context.Context, userID string) ([]models.DMChannelWithUser, error)

	CreateMessage(ctx context.Context, msg *models.DMMessage) error
	GetMessage(ctx context.Context, id string) (*models.DMMessage, error)
	ListMessages(ctx context.Context, channelID, beforeID string, limit int) ([]models.DMMessage, error)
	UpdateMessageContent(ctx context.Context, id, content string) (*models.DMMessage, error)
	DeleteMessage(ctx context.Context, id string) error

	CreateAttachment(ctx context.Context, att *models.DMAttachment) error
	GetAttachmentsByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.DMAttachment, error)

	ToggleReaction(ctx context.Context, messageID, userID, emoji string) (added bool, err error)
	GetReactionsByMessageID(ctx context.Context, messageID string) ([]models.ReactionGroup, error)
	GetReactionsByMessageIDs(ctx context.Context, messageIDs []string) (map[string][]models.ReactionGroup, error)

	PinMessage(ctx context.Context, messageID string) error
	UnpinMessage(ctx context.Context, messageID string) error
	ListPinnedMessages(ctx context.Context, channelID string) ([]models.DMMessage, error)
}
