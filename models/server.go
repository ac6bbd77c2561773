package models

import "time"

// Server is one row of the "servers" table. A server owns its categories,
// channels, roles, members, invites and bans; deleting it cascades all of
// them.
//
// SFUInstanceID points at the voice backend serving this server's rooms.
// Platform-managed servers share the platform instance; self-hosted servers
// bring their own.
type Server struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	IconURL        *string   `json:"icon_url"`
	OwnerID        string    `json:"owner_id"`
	InviteRequired bool      `json:"invite_required"`
	SFUInstanceID  *string   `json:"sfu_instance_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ServerSummary is the slim projection used in the ready payload and invite
// previews: enough to render a sidebar icon, nothing more.
type ServerSummary struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	IconURL *string `json:"icon_url,omitempty"`
}

// Summary returns the slim projection of the server.
func (s *Server) Summary() ServerSummary {
	return ServerSummary{ID: s.ID, Name: s.Name, IconURL: s.IconURL}
}

// UserServer is a server joined with the member's per-user sidebar position.
// GET /servers returns these ordered by position.
type UserServer struct {
	Server
	Position int `json:"position"`
}

// ServerStats is the aggregate block shown in a server's settings page.
type ServerStats struct {
	MemberCount  int `json:"member_count"`
	ChannelCount int `json:"channel_count"`
	MessageCount int `json:"message_count"`
	RoleCount    int `json:"role_count"`
}

// CreateServerRequest is the body of POST /servers.
// The creator becomes owner, gets the default role seeded, and the server
// starts with one "general" text channel.
type CreateServerRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// Normalize trims the name before length validation.
func (r *CreateServerRequest) Normalize() { r.Name = trimmed(r.Name) }

// UpdateServerRequest is the body of PATCH /servers/{id}.
// Nil fields are left unchanged; the icon is updated by the upload handler.
type UpdateServerRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=100"`
	InviteRequired *bool   `json:"invite_required"`
}

// Normalize trims the name if present.
func (r *UpdateServerRequest) Normalize() {
	if r.Name != nil {
		*r.Name = trimmed(*r.Name)
	}
}

// ReorderServersRequest is the body of PUT /servers/reorder. The ordering is
// per-user (it lives on the membership row), so no broadcast follows it.
type ReorderServersRequest struct {
	Positions []PositionUpdate `json:"positions" validate:"required,min=1,dive"`
}

// Validate rejects duplicate ids and positions.
func (r *ReorderServersRequest) Validate() error {
	return validatePositions(r.Positions)
}
