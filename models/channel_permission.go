package models

import (
	"fmt"
	"sort"
)

// ChannelPermissionOverride adjusts one role's permissions inside one channel.
//
//   - allow: bits granted on top of the server-level mask
//   - deny:  bits removed from the server-level mask
//   - a bit in neither set is inherited unchanged
//
// Primary key is (channel_id, role_id).
type ChannelPermissionOverride struct {
	ChannelID string     `json:"channel_id"`
	RoleID    string     `json:"role_id"`
	Allow     Permission `json:"allow"`
	Deny      Permission `json:"deny"`
}

// PermChannelOverridable is the subset of bits a channel override may touch.
// Server-administration bits (manage channels/roles/invites, kick, ban, move,
// mute, deafen, admin) stay global; only in-channel activity is overridable.
const PermChannelOverridable Permission = PermViewChannel | PermReadMessages |
	PermSendMessages | PermMentionEveryone | PermManageMessages |
	PermConnectVoice | PermSpeak | PermStream

// ApplyOverride folds one override into a running mask:
// denied bits are cleared first, then allowed bits are set, so an override
// that both denies and allows a bit resolves to allow. Callers must apply
// overrides in ascending role position order; the last (highest) role wins.
func ApplyOverride(mask Permission, o ChannelPermissionOverride) Permission {
	return (mask &^ o.Deny) | o.Allow
}

// EffectiveChannelPermissions computes the user's mask inside one channel.
//
// base is the server-level mask (EffectivePermissions of the user's roles).
// An administrator is immune to overrides. Otherwise the overrides belonging
// to the user's roles are applied lowest position first, so when two roles
// disagree about a bit the higher-positioned role decides.
func EffectiveChannelPermissions(base Permission, roles []Role, overrides []ChannelPermissionOverride) Permission {
	if base&PermAdmin != 0 {
		return PermAll
	}

	positions := make(map[string]int, len(roles))
	for _, r := range roles {
		positions[r.ID] = r.Position
	}

	applicable := make([]ChannelPermissionOverride, 0, len(overrides))
	for _, o := range overrides {
		if _, held := positions[o.RoleID]; held {
			applicable = append(applicable, o)
		}
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		return positions[applicable[i].RoleID] < positions[applicable[j].RoleID]
	})

	mask := base
	for _, o := range applicable {
		mask = ApplyOverride(mask, o)
	}
	return mask
}

// SetOverrideRequest is the body of PUT /channels/{id}/permissions/{roleId}.
type SetOverrideRequest struct {
	Allow Permission `json:"allow"`
	Deny  Permission `json:"deny"`
}

// Validate enforces the override rules:
// allow and deny may not claim the same bit, and neither may touch bits
// outside the channel-overridable subset.
func (r *SetOverrideRequest) Validate() error {
	if r.Allow < 0 || r.Deny < 0 {
		return fmt.Errorf("invalid permissions value")
	}
	if r.Allow&r.Deny != 0 {
		return fmt.Errorf("allow and deny cannot have overlapping permission bits")
	}
	if r.Allow&^PermChannelOverridable != 0 {
		return fmt.Errorf("allow contains non-overridable permission bits")
	}
	if r.Deny&^PermChannelOverridable != 0 {
		return fmt.Errorf("deny contains non-overridable permission bits")
	}
	return nil
}
