package domain

import (
	"errors"
	"time"
)

// ErrSessionConflict is returned by Create when the session id already exists.
var ErrSessionConflict = errors.New("session already exists")

// Session is the server-side record of one issued refresh token. It is revoked at most
// once: by rotation, logout or reuse detection.
type Session struct {
	ID        string // equals the refresh token's jti
	UserID    string
	TokenHash string // SHA-256 hex of the signed refresh token
	ExpiresAt time.Time
	RevokedAt *time.Time // nil when not revoked
	CreatedAt time.Time
}

// Revoked reports whether the session has been revoked.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session's own expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Validate validates the session for persistence. Returns an error describing the first validation failure.
func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.UserID == "" {
		return errors.New("user id is required")
	}
	if s.TokenHash == "" {
		return errors.New("token hash is required")
	}
	if s.ExpiresAt.IsZero() {
		return errors.New("expiry is required")
	}
	return nil
}
