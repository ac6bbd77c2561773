package models

import "time"

// VoiceState is one user's presence in one voice channel.
//
// Voice state is ephemeral: it lives in the in-memory voice store only and is
// never persisted. A server restart drops every websocket, so rebuilding from
// empty is the correct recovery. The profile fields are captured at join time
// so broadcasts never need a user lookup.
//
// IsMuted/IsDeafened are self-set; IsServerMuted/IsServerDeafened are set by
// moderators and only moderators can clear them. The server stores the four
// flags independently and infers nothing between them.
type VoiceState struct {
	UserID           string    `json:"user_id"`
	ChannelID        string    `json:"channel_id"`
	ServerID         string    `json:"server_id"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	AvatarURL        string    `json:"avatar_url"`
	IsMuted          bool      `json:"is_muted"`
	IsDeafened       bool      `json:"is_deafened"`
	IsStreaming      bool      `json:"is_streaming"`
	IsServerMuted    bool      `json:"is_server_muted"`
	IsServerDeafened bool      `json:"is_server_deafened"`
	JoinedAt         time.Time `json:"joined_at"`
}

// VoiceAction is the transition kind carried on a voice_state_update event.
type VoiceAction string

const (
	VoiceActionJoin   VoiceAction = "join"
	VoiceActionLeave  VoiceAction = "leave"
	VoiceActionUpdate VoiceAction = "update"
)

// VoiceStatePayload is the broadcast form of a voice transition: the state
// snapshot plus what happened to it.
type VoiceStatePayload struct {
	VoiceState
	Action VoiceAction `json:"action"`
}

// VoiceJoinRequest is the payload of the voice_join intent.
type VoiceJoinRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
}

// VoiceStateUpdateRequest is the payload of the voice_state_update_request
// intent. Nil fields keep their current value (partial update).
type VoiceStateUpdateRequest struct {
	IsMuted     *bool `json:"is_muted"`
	IsDeafened  *bool `json:"is_deafened"`
	IsStreaming *bool `json:"is_streaming"`
}

// VoiceAdminStateRequest is the payload of the voice_admin_state_update
// intent: a moderator server-muting or server-deafening a target.
type VoiceAdminStateRequest struct {
	TargetUserID     string `json:"target_user_id" validate:"required"`
	IsServerMuted    *bool  `json:"is_server_muted"`
	IsServerDeafened *bool  `json:"is_server_deafened"`
}

// VoiceMoveRequest is the payload of the voice_move_user intent.
type VoiceMoveRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
	ChannelID    string `json:"channel_id" validate:"required"`
}

// VoiceDisconnectRequest is the payload of the voice_disconnect_user intent.
type VoiceDisconnectRequest struct {
	TargetUserID string `json:"target_user_id" validate:"required"`
}

// VoiceTokenResponse is returned from POST /voice/token: everything the
// client needs to dial the SFU room for the channel.
type VoiceTokenResponse struct {
	Token     string `json:"token"`
	URL       string `json:"url"`
	ChannelID string `json:"channel_id"`
}

// VoiceTokenRequest is the body of POST /voice/token.
type VoiceTokenRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
}
