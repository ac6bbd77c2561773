package models

import "time"

// FriendshipStatus is the lifecycle of a friendship row.
type FriendshipStatus string

const (
	FriendshipStatusPending  FriendshipStatus = "pending"
	FriendshipStatusAccepted FriendshipStatus = "accepted"
)

// Friendship is one row of the "friendships" table.
//
// One row per pair: UserID is whoever sent the request, FriendID the target.
// Accepting flips status on that same row, so an accepted friendship is
// symmetric even though the row is directional. Lookups must try both
// orientations.
type Friendship struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	FriendID  string           `json:"friend_id"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Other returns the peer of the given user on this row.
func (f *Friendship) Other(userID string) string {
	if f.UserID == userID {
		return f.FriendID
	}
	return f.UserID
}

// FriendshipWithUser is the friends/requests list projection: the row joined
// with the other side's public profile. "Other side" depends on orientation;
// the repository resolves it in the query.
type FriendshipWithUser struct {
	ID        string           `json:"id"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	// Incoming reports whether the viewing user is the target of a pending
	// request; the client shows accept/decline only for incoming ones.
	Incoming bool        `json:"incoming"`
	User     *PublicUser `json:"user"`
}

// SendFriendRequestRequest addresses the target by username; ids are not
// generally known across servers.
type SendFriendRequestRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,username"`
}

// Normalize trims the username.
func (r *SendFriendRequestRequest) Normalize() { r.Username = trimmed(r.Username) }
