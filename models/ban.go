package models

import "time"

// Ban is one row of the "bans" table, primary key (server_id, user_id).
//
// Username is denormalized at ban time so the ban list stays readable even if
// the account is later deleted. A banned user is kicked immediately, cannot
// rejoin via invite, and their live connections are force-closed.
type Ban struct {
	ServerID  string    `json:"server_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Reason    *string   `json:"reason"`
	BannedBy  string    `json:"banned_by"`
	CreatedAt time.Time `json:"created_at"`
}

// BanRequest is the body of PUT /servers/{id}/bans/{userId}.
type BanRequest struct {
	Reason string `json:"reason" validate:"max=512"`
}

// Normalize trims the reason.
func (r *BanRequest) Normalize() { r.Reason = trimmed(r.Reason) }
