package models

import "time"

// MemberWithRoles is the member list view model: profile fields, the roles
// held in that server, and the folded server-level permission mask.
//
// It deliberately does not embed User. Embedding would drag PasswordHash and
// Email along, and json:"-" on an embedded field is too easy to defeat in a
// different marshaling context. Listing the safe fields explicitly costs a
// few lines and removes the foot-gun.
type MemberWithRoles struct {
	ID                   string     `json:"id"`
	Username             string     `json:"username"`
	DisplayName          *string    `json:"display_name"`
	AvatarURL            *string    `json:"avatar_url"`
	Status               UserStatus `json:"status"`
	CustomStatus         *string    `json:"custom_status"`
	JoinedAt             time.Time  `json:"joined_at"`
	Roles                []Role     `json:"roles"`
	EffectivePermissions Permission `json:"effective_permissions"`
}

// ToMemberWithRoles builds the view model from a user, their membership row
// and their roles in the server. The permission fold happens here once
// instead of at every call site.
func ToMemberWithRoles(user *User, member *ServerMember, roles []Role) MemberWithRoles {
	m := MemberWithRoles{
		ID:                   user.ID,
		Username:             user.Username,
		DisplayName:          user.DisplayName,
		AvatarURL:            user.AvatarURL,
		Status:               user.Status,
		CustomStatus:         user.CustomStatus,
		Roles:                roles,
		EffectivePermissions: EffectivePermissions(roles),
	}
	if member != nil {
		m.JoinedAt = member.JoinedAt
	}
	return m
}

// HighestPosition returns the top role position in the list, 0 when empty.
// Hierarchy checks compare positions: a member may only manage roles and
// members strictly below their own highest role. The server owner bypasses
// position checks entirely (compared against Server.OwnerID, not a role).
func HighestPosition(roles []Role) int {
	max := 0
	for _, r := range roles {
		if r.Position > max {
			max = r.Position
		}
	}
	return max
}

// RoleModifyRequest replaces a member's role set, declaratively: the service
// diffs against current roles, assigning the missing and removing the extra.
// The default role is implicit and never part of the list.
type RoleModifyRequest struct {
	RoleIDs []string `json:"role_ids" validate:"required"`
}
