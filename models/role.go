package models

import "time"

// Permission is a bit flag set packed into one int64.
//
// Check:   permissions&PermSendMessages != 0
// Grant:   permissions | PermSendMessages
// Revoke:  permissions &^ PermSendMessages
//
// A user's server-level mask is the OR of all their roles' masks; channel
// overrides then adjust it per channel (see ApplyOverride). New bits must be
// appended, never reordered: the values are persisted in the roles table.
type Permission int64

const (
	PermViewChannel     Permission = 1 << iota // 1      channel visible in the sidebar
	PermReadMessages                           // 2      read message history
	PermSendMessages                           // 4
	PermMentionEveryone                        // 8      use @everyone / @here
	PermManageMessages                         // 16     delete or pin others' messages
	PermManageChannels                         // 32
	PermManageRoles                            // 64
	PermManageInvites                          // 128
	PermKickMembers                            // 256
	PermBanMembers                             // 512
	PermConnectVoice                           // 1024
	PermSpeak                                  // 2048
	PermStream                                 // 4096   screen share / camera
	PermMoveMembers                            // 8192   move or disconnect voice users
	PermMuteMembers                            // 16384  server-mute in voice
	PermDeafenMembers                          // 32768  server-deafen in voice
	PermAdmin                                  // 65536  implies every other bit
)

// PermAll is every defined bit set, kept as (1 << N) - 1 with N the number of
// permissions above.
const PermAll Permission = (1 << 17) - 1

// PermDefault is the mask granted to a new server's default role: members can
// see channels, chat and use voice, nothing administrative.
const PermDefault Permission = PermViewChannel | PermReadMessages | PermSendMessages |
	PermConnectVoice | PermSpeak | PermStream

// Has reports whether the mask contains the given bit.
// PermAdmin short-circuits to true for everything.
func (p Permission) Has(perm Permission) bool {
	if p&PermAdmin != 0 {
		return true
	}
	return p&perm != 0
}

// Role is one row of the "roles" table.
//
// Position is the hierarchy: a higher position outranks a lower one, and
// overrides from higher-positioned roles win when they conflict. Exactly one
// role per server has IsDefault set (the @everyone role every member holds
// implicitly); it cannot be deleted.
type Role struct {
	ID          string     `json:"id"`
	ServerID    string     `json:"server_id"`
	Name        string     `json:"name"`
	Color       string     `json:"color"`
	Position    int        `json:"position"`
	Permissions Permission `json:"permissions"`
	IsDefault   bool       `json:"is_default"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EffectivePermissions folds a role list into the server-level mask.
// PermAdmin widens to PermAll so downstream override math can stay pure
// bit arithmetic without re-checking the admin special case.
func EffectivePermissions(roles []Role) Permission {
	var mask Permission
	for _, r := range roles {
		mask |= r.Permissions
	}
	if mask&PermAdmin != 0 {
		return PermAll
	}
	return mask
}

// CreateRoleRequest is the body of POST /servers/{id}/roles.
type CreateRoleRequest struct {
	Name        string     `json:"name" validate:"required,min=1,max=32"`
	Color       string     `json:"color" validate:"required,hexcolor"`
	Permissions Permission `json:"permissions"`
}

// Normalize trims the name and lowercases the color for stable storage.
func (r *CreateRoleRequest) Normalize() {
	r.Name = trimmed(r.Name)
	r.Color = normalizeHexColor(r.Color)
}

// Validate rejects permission masks with bits outside the defined set.
func (r *CreateRoleRequest) Validate() error {
	return validatePermissionMask(r.Permissions)
}

// UpdateRoleRequest is the body of PATCH /servers/{id}/roles/{roleId}.
// All fields are pointers: nil means "leave unchanged".
type UpdateRoleRequest struct {
	Name        *string     `json:"name" validate:"omitempty,min=1,max=32"`
	Color       *string     `json:"color" validate:"omitempty,hexcolor"`
	Permissions *Permission `json:"permissions"`
}

// Normalize trims and normalizes the fields that are present.
func (r *UpdateRoleRequest) Normalize() {
	if r.Name != nil {
		*r.Name = trimmed(*r.Name)
	}
	if r.Color != nil {
		*r.Color = normalizeHexColor(*r.Color)
	}
}

// Validate rejects permission masks with bits outside the defined set.
func (r *UpdateRoleRequest) Validate() error {
	if r.Permissions == nil {
		return nil
	}
	return validatePermissionMask(*r.Permissions)
}

// ReorderRolesRequest is the body of PUT /servers/{id}/roles/reorder.
// Positions is the full new ordering; it is applied atomically.
type ReorderRolesRequest struct {
	Positions []PositionUpdate `json:"positions" validate:"required,min=1,dive"`
}

// Validate rejects duplicate ids and duplicate positions; partial or
// ambiguous reorders would break the position-uniqueness guarantee.
func (r *ReorderRolesRequest) Validate() error {
	return validatePositions(r.Positions)
}
