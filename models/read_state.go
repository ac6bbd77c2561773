package models

import "time"

// ReadState is one row of the "read_states" table, primary key
// (user_id, channel_id).
//
// Watermark pattern: instead of marking individual messages read, we store
// "read up to this message". Unread count is the number of messages in the
// channel newer than the watermark.
type ReadState struct {
	UserID            string    `json:"user_id"`
	ChannelID         string    `json:"channel_id"`
	LastReadMessageID *string   `json:"last_read_message_id"`
	LastReadAt        time.Time `json:"last_read_at"`
}

// UnreadInfo is one channel's unread counter for the sidebar badge.
type UnreadInfo struct {
	ChannelID    string `json:"channel_id"`
	UnreadCount  int    `json:"unread_count"`
	MentionCount int    `json:"mention_count"`
}

// MarkReadRequest advances the watermark of a channel to a specific message.
type MarkReadRequest struct {
	MessageID string `json:"message_id" validate:"required"`
}
