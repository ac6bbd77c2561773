package models

import "time"

// ServerMember is one row of the "server_members" table, primary key
// (server_id, user_id).
//
// Position orders servers in this user's sidebar; it is scoped to the user,
// not to the server, so reordering never touches anyone else's rows.
type ServerMember struct {
	ServerID string    `json:"server_id"`
	UserID   string    `json:"user_id"`
	Position int       `json:"position"`
	JoinedAt time.Time `json:"joined_at"`
}
