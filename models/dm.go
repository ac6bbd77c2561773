package models

import "time"

// DMChannel is one row of the "dm_channels" table.
//
// The pair is canonicalized as user1_id < user2_id before insert, so the same
// two users always map to the same row regardless of who opened the
// conversation (UNIQUE on the pair).
type DMChannel struct {
	ID            string     `json:"id"`
	User1ID       string     `json:"user1_id"`
	User2ID       string     `json:"user2_id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

// OtherParticipant returns the peer of the given user in this channel.
func (c *DMChannel) OtherParticipant(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// Includes reports whether the user is one of the two participants.
func (c *DMChannel) Includes(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// DMChannelWithUser is the DM list projection: the channel plus the other
// participant's public profile, ordered by last activity.
type DMChannelWithUser struct {
	ID            string      `json:"id"`
	OtherUser     *PublicUser `json:"other_user"`
	CreatedAt     time.Time   `json:"created_at"`
	LastMessageAt *time.Time  `json:"last_message_at"`
}

// DMMessage mirrors Message but lives in its own table, keyed by DM channel.
type DMMessage struct {
	ID          string     `json:"id"`
	DMChannelID string     `json:"dm_channel_id"`
	UserID      string     `json:"user_id"`
	Content     *string    `json:"content"`
	ReplyToID   *string    `json:"reply_to_id"`
	IsPinned    bool       `json:"is_pinned"`
	EditedAt    *time.Time `json:"edited_at"`
	CreatedAt   time.Time  `json:"created_at"`

	Author            *PublicUser       `json:"author,omitempty"`
	Attachments       []DMAttachment    `json:"attachments"`
	Reactions         []ReactionGroup   `json:"reactions"`
	ReferencedMessage *MessageReference `json:"referenced_message,omitempty"`

	// Snippet is set only on search results, same contract as Message.
	Snippet string `json:"snippet,omitempty"`
}

// DMAttachment is one row of the "dm_attachments" table.
type DMAttachment struct {
	ID          string    `json:"id"`
	DMMessageID string    `json:"dm_message_id"`
	Filename    string    `json:"filename"`
	FileURL     string    `json:"file_url"`
	FileSize    *int64    `json:"file_size"`
	MimeType    *string   `json:"mime_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// DMReaction is one row of the "dm_reactions" table,
// UNIQUE(dm_message_id, user_id, emoji), same toggle contract as Reaction.
type DMReaction struct {
	ID          string    `json:"id"`
	DMMessageID string    `json:"dm_message_id"`
	UserID      string    `json:"user_id"`
	Emoji       string    `json:"emoji"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateDMChannelRequest is the body of POST /dm/channels.
type CreateDMChannelRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// CreateDMMessageRequest is the body of POST /dm/channels/{id}/messages.
// Same content rules as CreateMessageRequest.
type CreateDMMessageRequest struct {
	Content   string  `json:"content" validate:"max=2000"`
	ReplyToID *string `json:"reply_to_id,omitempty"`
	HasFiles  bool    `json:"-"`
}

// Normalize trims the content.
func (r *CreateDMMessageRequest) Normalize() { r.Content = trimmed(r.Content) }

// Validate requires content unless files are attached.
func (r *CreateDMMessageRequest) Validate() error {
	return validateMessageContent(r.Content, r.HasFiles)
}

// UpdateDMMessageRequest is the body of PATCH /dm/channels/{id}/messages/{msgId}.
type UpdateDMMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// Normalize trims the content.
func (r *UpdateDMMessageRequest) Normalize() { r.Content = trimmed(r.Content) }

// ToggleDMReactionRequest is the body of PUT /dm/.../reactions.
type ToggleDMReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// Normalize trims the emoji.
func (r *ToggleDMReactionRequest) Normalize() { r.Emoji = trimmed(r.Emoji) }

// DMMessagePage is a cursor-paginated slice of DM history.
type DMMessagePage struct {
	Messages []DMMessage `json:"messages"`
	HasMore  bool        `json:"has_more"`
}

// DMSearchResult is a full-text search page over one DM channel.
type DMSearchResult struct {
	Messages   []DMMessage `json:"messages"`
	TotalCount int         `json:"total_count"`
}
