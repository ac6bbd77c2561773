package models

import "time"

// Reaction is one row of the "reactions" table.
//
// UNIQUE(message_id, user_id, emoji) makes toggling race-free: the insert
// either lands or hits the constraint, and the constraint hit becomes a
// delete. Two concurrent toggles of the same triple collapse to one flip.
type Reaction struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionGroup is the per-emoji aggregate the client renders: the emoji, how
// many reacted, and who, so the current user's own reaction can be
// highlighted.
type ReactionGroup struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// ToggleReactionRequest is the body of PUT /channels/{id}/messages/{msgId}/reactions.
type ToggleReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

// Normalize trims the emoji.
func (r *ToggleReactionRequest) Normalize() { r.Emoji = trimmed(r.Emoji) }
