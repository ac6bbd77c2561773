// Package ws carries the realtime fabric: the hub that tracks connections,
// the per-connection read/write pumps, and the wire event envelope. The hub
// itself holds no domain logic; inbound intents are dispatched through a
// handler table populated at startup, and domain services broadcast through
// the EventPublisher interface.
package ws

import "encoding/json"

// Event is the outbound wire envelope. Seq is stamped at fan-out from a
// single atomic counter, so a client that sees seq 5 followed by seq 7 knows
// event 6 was dropped and can resync over HTTP.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// inboundEvent is the client→server envelope. Data stays raw; the intent
// handler registered for the op decodes it.
type inboundEvent struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// Client → server intents.
const (
	OpHeartbeat      = "heartbeat"
	OpTyping         = "typing"
	OpDMTyping       = "dm_typing"
	OpPresenceUpdate = "presence_update"

	OpVoiceJoin             = "voice_join"
	OpVoiceLeave            = "voice_leave"
	OpVoiceStateUpdateReq   = "voice_state_update_request"
	OpVoiceAdminStateUpdate = "voice_admin_state_update"
	OpVoiceMoveUser         = "voice_move_user"
	OpVoiceDisconnectUser   = "voice_disconnect_user"
)

// Server → client events.
const (
	OpReady        = "ready"
	OpHeartbeatAck = "heartbeat_ack"
	OpError        = "error"

	OpMessageCreate = "message_create"
	OpMessageUpdate = "message_update"
	OpMessageDelete = "message_delete"
	OpMessagePin    = "message_pin"
	OpMessageUnpin  = "message_unpin"

	OpReactionUpdate = "reaction_update"

	OpChannelCreate  = "channel_create"
	OpChannelUpdate  = "channel_update"
	OpChannelDelete  = "channel_delete"
	OpChannelReorder = "channel_reorder"

	OpCategoryCreate = "category_create"
	OpCategoryUpdate = "category_update"
	OpCategoryDelete = "category_delete"

	OpChannelPermissionUpdate = "channel_permission_update"
	OpChannelPermissionDelete = "channel_permission_delete"

	OpTypingStart   = "typing_start"
	OpDMTypingStart = "dm_typing_start"
	OpPresence      = "presence_update"

	OpServerCreate = "server_create"
	OpServerUpdate = "server_update"
	OpServerDelete = "server_delete"

	OpMemberJoin   = "member_join"
	OpMemberLeave  = "member_leave"
	OpMemberUpdate = "member_update"

	OpRoleCreate   = "role_create"
	OpRoleUpdate   = "role_update"
	OpRoleDelete   = "role_delete"
	OpRolesReorder = "roles_reorder"

	OpDMChannelCreate  = "dm_channel_create"
	OpDMMessageCreate  = "dm_message_create"
	OpDMMessageUpdate  = "dm_message_update"
	OpDMMessageDelete  = "dm_message_delete"
	OpDMReactionUpdate = "dm_reaction_update"
	OpDMMessagePin     = "dm_message_pin"
	OpDMMessageUnpin   = "dm_message_unpin"

	OpVoiceStateUpdate     = "voice_state_update"
	OpVoiceStatesSync      = "voice_states_sync"
	OpVoiceForceMove       = "voice_force_move"
	OpVoiceForceDisconnect = "voice_force_disconnect"

	OpFriendRequestCreate  = "friend_request_create"
	OpFriendRequestAccept  = "friend_request_accept"
	OpFriendRequestDecline = "friend_request_decline"
	OpFriendRemove         = "friend_remove"
)

// P2P call ops flow both directions: the initiating intent carries the same
// op name as the notification relayed to the peer.
const (
	OpP2PCallInitiate = "p2p_call_initiate"
	OpP2PCallAccept   = "p2p_call_accept"
	OpP2PCallDecline  = "p2p_call_decline"
	OpP2PCallEnd      = "p2p_call_end"
	OpP2PSignal       = "p2p_signal"
	OpP2PCallBusy     = "p2p_call_busy"
)

// ReadyData is the first event on every new connection.
type ReadyData struct {
	OnlineUserIDs  []string          `json:"online_user_ids"`
	Servers        []ReadyServerItem `json:"servers"`
	MutedServerIDs []string          `json:"muted_server_ids"`
}

// ReadyServerItem is the minimal server shape in the ready payload. Defined
// here rather than reusing models so ws stays free of domain imports.
type ReadyServerItem struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	IconURL *string `json:"icon_url"`
}

// ErrorData is sent only to the connection whose intent failed.
type ErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// PresenceData flows both ways: inbound as a manual status change, outbound
// as the broadcast that a user's status changed.
type PresenceData struct {
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status"`
}

// TypingData is the inbound typing intent.
type TypingData struct {
	ChannelID string `json:"channel_id"`
}

// TypingStartData is broadcast to everyone who can see the channel.
type TypingStartData struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	ChannelID string `json:"channel_id"`
}

// DMTypingData is the inbound DM typing intent.
type DMTypingData struct {
	DMChannelID string `json:"dm_channel_id"`
}

// DMTypingStartData goes only to the other DM participant.
type DMTypingStartData struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DMChannelID string `json:"dm_channel_id"`
}

// Voice intent payloads. Pointer fields mean "leave unchanged".

type VoiceJoinData struct {
	ChannelID string `json:"channel_id"`
}

type VoiceStateUpdateRequestData struct {
	IsMuted     *bool `json:"is_muted,omitempty"`
	IsDeafened  *bool `json:"is_deafened,omitempty"`
	IsStreaming *bool `json:"is_streaming,omitempty"`
}

type VoiceAdminStateUpdateData struct {
	TargetUserID     string `json:"target_user_id"`
	IsServerMuted    *bool  `json:"is_server_muted,omitempty"`
	IsServerDeafened *bool  `json:"is_server_deafened,omitempty"`
}

type VoiceMoveUserData struct {
	TargetUserID    string `json:"target_user_id"`
	TargetChannelID string `json:"target_channel_id"`
}

type VoiceDisconnectUserData struct {
	TargetUserID string `json:"target_user_id"`
}

// VoiceForceMoveData tells the moved user which channel to reconnect to.
type VoiceForceMoveData struct {
	ChannelID string `json:"channel_id"`
}

// P2P call payloads.

type P2PCallInitiateData struct {
	ReceiverID string `json:"receiver_id"`
	CallType   string `json:"call_type"` // "voice" or "video"
}

type P2PCallRefData struct {
	CallID string `json:"call_id"`
}

// P2PSignalData carries a WebRTC SDP offer/answer or ICE candidate. The
// server relays it to the peer without inspecting the contents.
type P2PSignalData struct {
	CallID    string `json:"call_id"`
	Type      string `json:"type"` // "offer", "answer", "ice-candidate"
	SDP       string `json:"sdp,omitempty"`
	Candidate any    `json:"candidate,omitempty"`
}
