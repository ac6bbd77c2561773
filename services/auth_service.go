package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chorushq/chorus/config"
	"github.com/chorushq/chorus/models"
	"github.com/chorushq/chorus/pkg"
	"github.com/chorushq/chorus/pkg/email"
	"github.com/chorushq/chorus/pkg/logger"
	"github.com/chorushq/chorus/pkg/ratelimit"
	"github.com/chorushq/chorus/repository"
)

// resetTokenTTL bounds how long a password-reset link stays valid.
const resetTokenTTL = 20 * time.Minute

// resetCooldown throttles repeated reset requests for the same account.
const resetCooldown = time.Minute

// AuthService issues and validates credentials: bcrypt passwords, short-lived
// JWT access tokens, and opaque refresh tokens persisted (hashed) in the
// sessions table so they can be revoked.
type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	resets   repository.PasswordResetRepository
	mailer   email.EmailSender
	limiter  *ratelimit.LoginRateLimiter
	cfg      config.JWTConfig
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	resets repository.PasswordResetRepository,
	mailer email.EmailSender,
	limiter *ratelimit.LoginRateLimiter,
	cfg config.JWTConfig,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		resets:   resets,
		mailer:   mailer,
		limiter:  limiter,
		cfg:      cfg,
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token generation: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Register creates an account and logs it in.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	emailAddr := strings.ToLower(req.Email)
	user := &models.User{
		Username:     req.Username,
		Email:        &emailAddr,
		PasswordHash: string(hash),
		Status:       models.UserStatusOnline,
		Language:     "en",
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Login verifies credentials behind a per-IP rate limiter. A success resets
// the IP's counter; failures are deliberately indistinguishable between
// unknown username and wrong password.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, ip string) (*models.AuthResponse, error) {
	if !s.limiter.Allow(ip) {
		retry := s.limiter.RetryAfterSeconds(ip)
		return nil, fmt.Errorf("%w: %s", pkg.ErrRateLimited, ratelimit.FormatRetryMessage(retry))
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid username or password", pkg.ErrUnauthorized)
	}

	s.limiter.Reset(ip)
	return s.issue(ctx, user)
}

// issue mints the token pair and persists the refresh session.
func (s *AuthService) issue(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	access, err := s.mintAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := randomToken()
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: time.Now().Add(s.cfg.RefreshExpiry),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.cfg.AccessExpiry.Seconds()),
	}, nil
}

func (s *AuthService) mintAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := models.TokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses and verifies an access token. Used by the HTTP
// auth middleware and the websocket handshake.
func (s *AuthService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: invalid or expired token", pkg.ErrUnauthorized)
	}
	return claims, nil
}

// Refresh rotates the token pair: the presented refresh token is consumed
// and replaced. A reused (already-deleted) token fails with unauthorized.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	session, err := s.sessions.GetByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", pkg.ErrUnauthorized)
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return nil, fmt.Errorf("%w: refresh token expired", pkg.ErrUnauthorized)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: account no longer exists", pkg.ErrUnauthorized)
	}
	if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Logout revokes one refresh session. Unknown tokens are a no-op: the client
// outcome (logged out) is identical.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.sessions.GetByTokenHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil
	}
	return s.sessions.DeleteByID(ctx, session.ID)
}

// ChangePassword verifies the current password, swaps the hash and revokes
// every session, forcing re-login everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *models.ChangePasswordRequest) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("%w: current password is incorrect", pkg.ErrUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}
	return s.sessions.DeleteByUserID(ctx, userID)
}

// ForgotPassword issues a one-shot reset token and mails it. The outcome is
// identical whether or not the address exists, so accounts cannot be
// enumerated. Repeated requests inside the cooldown are silently dropped.
func (s *AuthService) ForgotPassword(ctx context.Context, emailAddr string) error {
	_ = s.resets.DeleteExpired(ctx)

	user, err := s.users.GetByEmail(ctx, strings.ToLower(emailAddr))
	if err != nil {
		if errors.Is(err, pkg.ErrNotFound) {
			return nil
		}
		return err
	}

	if latest, err := s.resets.GetLatestByUserID(ctx, user.ID); err == nil {
		if time.Since(latest.CreatedAt) < resetCooldown {
			return nil
		}
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	if err := s.resets.DeleteByUserID(ctx, user.ID); err != nil {
		return err
	}
	if err := s.resets.Create(ctx, &models.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: hashToken(token),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}); err != nil {
		return err
	}

	if user.Email == nil {
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, *user.Email, token); err != nil {
		logger.L().Error("password reset mail failed",
			zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword consumes a reset token, sets the new password and revokes
// every session.
func (s *AuthService) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) error {
	token, err := s.resets.GetByTokenHash(ctx, hashToken(req.Token))
	if err != nil {
		return fmt.Errorf("%w: invalid or expired reset token", pkg.ErrUnauthorized)
	}
	if time.Now().After(token.ExpiresAt) {
		_ = s.resets.DeleteByID(ctx, token.ID)
		return fmt.Errorf("%w: invalid or expired reset token", pkg.ErrUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, token.UserID, string(hash)); err != nil {
		return err
	}
	if err := s.resets.DeleteByID(ctx, token.ID); err != nil {
		return err
	}
	return s.sessions.DeleteByUserID(ctx, token.UserID)
}

// StartSessionSweeper removes expired refresh sessions hourly until ctx ends.
func (s *AuthService) StartSessionSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.sessions.DeleteExpired(ctx)
				if err != nil {
					logger.L().Error("session sweep failed", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.L().Info("expired sessions swept", zap.Int64("count", n))
				}
			}
		}
	}()
}
