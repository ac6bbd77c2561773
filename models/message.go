package models

import "time"

// Message is one row of the "messages" table plus the join/aggregate fields
// the client renders with (author, attachments, reactions, reply preview).
// Repositories batch-load the extras so a page of fifty messages costs a
// constant number of queries.
//
// Content is nullable: attachment-only messages carry no text.
type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channel_id"`
	UserID    string     `json:"user_id"`
	Content   *string    `json:"content"`
	ReplyToID *string    `json:"reply_to_id"`
	IsPinned  bool       `json:"is_pinned"`
	EditedAt  *time.Time `json:"edited_at"`
	CreatedAt time.Time  `json:"created_at"`

	Author            *PublicUser       `json:"author,omitempty"`
	Attachments       []Attachment      `json:"attachments"`
	Reactions         []ReactionGroup   `json:"reactions"`
	Mentions          []string          `json:"mentions"`
	ReferencedMessage *MessageReference `json:"referenced_message,omitempty"`

	// Snippet is set only on search results: the FTS match with the hit
	// wrapped in <mark> tags, sanitized before it leaves the server.
	Snippet string `json:"snippet,omitempty"`
}

// MessageReference is the reply preview embedded in a message. It is a
// projection loaded by id, not an owned pointer: if the referenced message
// was deleted it stays nil and the client renders a tombstone.
type MessageReference struct {
	ID      string      `json:"id"`
	Author  *PublicUser `json:"author,omitempty"`
	Content *string     `json:"content"`
}

// Attachment is one row of the "attachments" table.
type Attachment struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	Filename  string    `json:"filename"`
	FileURL   string    `json:"file_url"`
	FileSize  *int64    `json:"file_size"`
	MimeType  *string   `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// MessagePage is a cursor-paginated slice of history.
//
// Cursor pagination ("the 50 messages before this id") instead of offsets:
// new arrivals cannot shift the page under the reader.
type MessagePage struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"has_more"`
}

// SearchResult is a full-text search response page plus the total hit count
// for offset pagination in the search panel.
type SearchResult struct {
	Messages   []Message `json:"messages"`
	TotalCount int       `json:"total_count"`
}

// MaxMessageLength is the content cap in runes, matched by the client.
const MaxMessageLength = 2000

// CreateMessageRequest is the body of POST /channels/{id}/messages.
//
// HasFiles is set by the handler when the multipart form carries uploads;
// a message with files may have empty content.
type CreateMessageRequest struct {
	Content   string  `json:"content" validate:"max=2000"`
	ReplyToID *string `json:"reply_to_id,omitempty"`
	HasFiles  bool    `json:"-"`
}

// Normalize trims the content.
func (r *CreateMessageRequest) Normalize() { r.Content = trimmed(r.Content) }

// Validate requires content unless files are attached.
func (r *CreateMessageRequest) Validate() error {
	return validateMessageContent(r.Content, r.HasFiles)
}

// UpdateMessageRequest is the body of PATCH /channels/{id}/messages/{msgId}.
// Editing cannot remove attachments, so content is always required.
type UpdateMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// Normalize trims the content.
func (r *UpdateMessageRequest) Normalize() { r.Content = trimmed(r.Content) }
