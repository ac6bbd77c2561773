package models

import "time"

// ServerMute is one row of the "server_mutes" table, primary key
// (user_id, server_id).
//
// A muted server stays in the sidebar but raises no notification sound and no
// unread badge. MutedUntil nil means muted until explicitly unmuted; readers
// treat an expired row as not muted and it is pruned lazily.
type ServerMute struct {
	UserID     string     `json:"user_id"`
	ServerID   string     `json:"server_id"`
	MutedUntil *time.Time `json:"muted_until"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Active reports whether the mute is still in effect at the given time.
func (m *ServerMute) Active(now time.Time) bool {
	return m.MutedUntil == nil || now.Before(*m.MutedUntil)
}

// muteDurations maps the accepted duration literals; "forever" maps to zero
// and is stored as a NULL deadline.
var muteDurations = map[string]time.Duration{
	"1h":      time.Hour,
	"8h":      8 * time.Hour,
	"24h":     24 * time.Hour,
	"7d":      7 * 24 * time.Hour,
	"forever": 0,
}

// MuteServerRequest is the body of PUT /servers/{id}/mute.
type MuteServerRequest struct {
	Duration string `json:"duration" validate:"required,oneof=1h 8h 24h 7d forever"`
}

// ParseMutedUntil converts the duration literal into an absolute deadline,
// nil for "forever".
func (r *MuteServerRequest) ParseMutedUntil(now time.Time) *time.Time {
	d := muteDurations[r.Duration]
	if d == 0 {
		return nil
	}
	t := now.Add(d)
	return &t
}
