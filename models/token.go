package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the payload of an access token.
//
// It lives in models rather than an auth package because services, middleware
// and the websocket handshake all validate tokens; every layer may depend on
// models without creating an import cycle.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
