package models

import "time"

// PasswordResetToken is one row in the "password_reset_tokens" table.
//
// TokenHash is the hex-encoded SHA-256 of the plaintext token. The plaintext
// goes out by email and is never stored; verification hashes the presented
// token and compares. Tokens are single-use and expire after a short window.
type PasswordResetToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password.
// The response is identical whether or not the email exists, so the endpoint
// cannot be used to enumerate accounts.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}
