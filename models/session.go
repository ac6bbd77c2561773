package models

import "time"

// Session is one refresh-token row in the "sessions" table.
//
// Access tokens are short-lived JWTs and never stored. Refresh tokens are
// long-lived, so they live in the database where they can be revoked: logout
// deletes one row, a password change deletes all of a user's rows, and a
// background sweeper removes expired ones.
//
// Only the SHA-256 hash of the refresh token is stored. The plaintext is
// handed to the client once at issue time; a leaked database cannot be
// replayed into live sessions.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthResponse is returned by login, register and refresh.
// Refresh rotates the token pair: the presented refresh token is consumed
// and a new one is issued.
type AuthResponse struct {
	User         *User  `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
