// Package models holds the domain types shared by every layer: repositories
// scan into them, services operate on them, handlers and the websocket hub
// serialize them. Keeping them in one dependency-free package (plus request
// DTOs with their validation rules) avoids circular imports between layers.
package models

import "time"

// UserStatus is the presence state shown next to a user everywhere in the UI.
//
// "online" is derived from having at least one live connection unless the
// user manually picked idle/dnd/offline. A manual choice persists across
// reconnects; "offline" doubles as invisible mode.
type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusIdle    UserStatus = "idle"
	UserStatusDND     UserStatus = "dnd"
	UserStatusOffline UserStatus = "offline"
)

// User is the account record backing the "users" table.
//
// PasswordHash is never serialized. Email is nullable at the store level and
// only ever returned to the account owner; use Public() for any projection
// that reaches other users.
type User struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	DisplayName     *string    `json:"display_name"`
	AvatarURL       *string    `json:"avatar_url"`
	Email           *string    `json:"email,omitempty"`
	PasswordHash    string     `json:"-"`
	Status          UserStatus `json:"status"`
	CustomStatus    *string    `json:"custom_status"`
	Language        string     `json:"language"`
	IsPlatformAdmin bool       `json:"is_platform_admin,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Name returns the display name if set and non-empty, otherwise the username.
// Every place a single name is projected (voice states, mention resolution,
// call payloads) goes through this so the fallback policy stays uniform.
func (u *User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}

// PublicUser is the profile subset safe to hand to other users. Message
// authors, DM partners and friend entries all use this projection so the
// email address and platform-admin flag never leak sideways.
type PublicUser struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	DisplayName  *string    `json:"display_name"`
	AvatarURL    *string    `json:"avatar_url"`
	Status       UserStatus `json:"status"`
	CustomStatus *string    `json:"custom_status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Public converts a full user record into its shareable projection.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:           u.ID,
		Username:     u.Username,
		DisplayName:  u.DisplayName,
		AvatarURL:    u.AvatarURL,
		Status:       u.Status,
		CustomStatus: u.CustomStatus,
		CreatedAt:    u.CreatedAt,
	}
}

// RegisterRequest is the body of POST /auth/register.
// The username charset matches the @mention grammar, so anything that can be
// registered can also be mentioned.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UpdateProfileRequest lets a user edit their own profile.
// All fields are pointers: nil means "leave unchanged" (partial update).
type UpdateProfileRequest struct {
	DisplayName  *string `json:"display_name" validate:"omitempty,max=32"`
	CustomStatus *string `json:"custom_status" validate:"omitempty,max=128"`
	Language     *string `json:"language" validate:"omitempty,oneof=en tr"`
}

// ChangePasswordRequest is the body of POST /auth/change-password.
// A successful change revokes every session except the current one.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// UpdateStatusRequest carries a manual presence selection.
// The choice is persisted and survives reconnects.
type UpdateStatusRequest struct {
	Status UserStatus `json:"status" validate:"required,oneof=online idle dnd offline"`
}
