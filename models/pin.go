package models

import "time"

// PinnedMessage is one row of the "pinned_messages" table.
//
// Pin state lives in its own table rather than as a flag update on the
// message row; MessageID is UNIQUE so a message pins at most once. The
// per-channel pin cap is enforced in the service before insert.
type PinnedMessage struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	ChannelID string    `json:"channel_id"`
	PinnedBy  string    `json:"pinned_by"`
	CreatedAt time.Time `json:"created_at"`
}

// PinnedMessageWithDetails bundles the pin with the message itself and the
// pinning user, so the pins panel renders from a single request.
type PinnedMessageWithDetails struct {
	PinnedMessage
	Message      *Message    `json:"message"`
	PinnedByUser *PublicUser `json:"pinned_by_user,omitempty"`
}
