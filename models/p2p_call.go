package models

import "time"

// P2P calls are one-to-one WebRTC sessions. The server only relays signaling
// (SDP offers/answers and ICE candidates); media flows directly between the
// peers. All call state is in-memory: a restart drops the websockets and the
// calls with them.

// CallType distinguishes audio-only from camera calls.
type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

// CallState is the lifecycle of a call.
//
//	ringing  -> accepted (receiver accepts)
//	ringing  -> ended    (decline, cancel, 45s timeout)
//	accepted -> ended    (hangup or a peer disconnects)
type CallState string

const (
	CallStateRinging  CallState = "ringing"
	CallStateAccepted CallState = "accepted"
	CallStateEnded    CallState = "ended"
)

// P2PCall is one call in the registry. A user participates in at most one
// call in ringing or accepted state at any time.
type P2PCall struct {
	ID         string     `json:"id"`
	CallerID   string     `json:"caller_id"`
	ReceiverID string     `json:"receiver_id"`
	Type       CallType   `json:"type"`
	State      CallState  `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// Peer returns the other participant of the call.
func (c *P2PCall) Peer(userID string) string {
	if c.CallerID == userID {
		return c.ReceiverID
	}
	return c.CallerID
}

// Includes reports whether the user is a participant.
func (c *P2PCall) Includes(userID string) bool {
	return c.CallerID == userID || c.ReceiverID == userID
}

// P2PCallBroadcast is the payload of the call lifecycle events. It carries
// both sides' public profile fields so each client can render the other
// party without a lookup.
type P2PCallBroadcast struct {
	ID                  string     `json:"id"`
	CallerID            string     `json:"caller_id"`
	CallerUsername      string     `json:"caller_username"`
	CallerDisplayName   *string    `json:"caller_display_name"`
	CallerAvatarURL     *string    `json:"caller_avatar"`
	ReceiverID          string     `json:"receiver_id"`
	ReceiverUsername    string     `json:"receiver_username"`
	ReceiverDisplayName *string    `json:"receiver_display_name"`
	ReceiverAvatarURL   *string    `json:"receiver_avatar"`
	Type                CallType   `json:"type"`
	State               CallState  `json:"state"`
	StartedAt           time.Time  `json:"started_at"`
	AcceptedAt          *time.Time `json:"accepted_at,omitempty"`
}

// InitiateCallRequest is the payload of the p2p_call_initiate intent.
type InitiateCallRequest struct {
	ReceiverID string   `json:"receiver_id" validate:"required"`
	Type       CallType `json:"type" validate:"required,oneof=voice video"`
}

// CallActionRequest is the payload of the accept/decline intents.
type CallActionRequest struct {
	CallID string `json:"call_id" validate:"required"`
}

// P2PSignalPayload is relayed verbatim between the two participants.
// Type is offer, answer or ice-candidate. SDP carries session descriptions;
// Candidate carries the browser's RTCIceCandidateInit object, which the
// server never inspects.
type P2PSignalPayload struct {
	CallID    string `json:"call_id" validate:"required"`
	Type      string `json:"type" validate:"required,oneof=offer answer ice-candidate"`
	SDP       string `json:"sdp,omitempty"`
	Candidate any    `json:"candidate,omitempty"`
}
