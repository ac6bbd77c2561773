package models

import "time"

// Invite is one row of the "invites" table, primary key is the code itself.
//
// MaxUses of 0 means unlimited; ExpiresAt nil means the code never expires.
// CreatedBy is nullable so deleting the creator keeps the code alive.
type Invite struct {
	Code      string     `json:"code"`
	ServerID  string     `json:"server_id"`
	CreatedBy *string    `json:"created_by"`
	MaxUses   int        `json:"max_uses"`
	Uses      int        `json:"uses"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the code still admits members.
func (i *Invite) Usable(now time.Time) bool {
	if i.MaxUses > 0 && i.Uses >= i.MaxUses {
		return false
	}
	if i.ExpiresAt != nil && now.After(*i.ExpiresAt) {
		return false
	}
	return true
}

// InviteWithCreator is the invite management list projection.
type InviteWithCreator struct {
	Invite
	CreatorUsername    *string `json:"creator_username"`
	CreatorDisplayName *string `json:"creator_display_name"`
}

// InvitePreview is the unauthenticated peek shown on an invite card: server
// name, icon and member count, nothing else.
type InvitePreview struct {
	ServerID      string  `json:"server_id"`
	ServerName    string  `json:"server_name"`
	ServerIconURL *string `json:"server_icon_url"`
	MemberCount   int     `json:"member_count"`
}

// CreateInviteRequest is the body of POST /servers/{id}/invites.
// ExpiresIn is minutes; 0 means never.
type CreateInviteRequest struct {
	MaxUses   int `json:"max_uses" validate:"gte=0,lte=10000"`
	ExpiresIn int `json:"expires_in" validate:"gte=0,lte=525600"`
}

// ParseExpiresAt converts the relative minutes into an absolute deadline,
// nil when the code never expires.
func (r *CreateInviteRequest) ParseExpiresAt(now time.Time) *time.Time {
	if r.ExpiresIn == 0 {
		return nil
	}
	t := now.Add(time.Duration(r.ExpiresIn) * time.Minute)
	return &t
}
