package repository

import (
	"context"

	"saas-core/backend/internal/session/domain"
)

// Repository defines persistence for refresh sessions. No tenant filtering happens here.
type Repository interface {
	// Create persists a new session. It returns domain.ErrSessionConflict when the id exists.
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Revoke marks the session revoked if it is not already. It reports whether this call
	// performed the transition; revoking a missing or revoked session is (false, nil).
	Revoke(ctx context.Context, id string) (bool, error)
	// RevokeForUser revokes id only if it belongs to userID and is not revoked.
	RevokeForUser(ctx context.Context, id, userID string) (bool, error)
	// RevokeAllSessionsByUser revokes every non-revoked session of the user and returns how many.
	RevokeAllSessionsByUser(ctx context.Context, userID string) (int64, error)
}
