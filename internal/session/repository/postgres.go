package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"saas-core/backend/internal/db"
	"saas-core/backend/internal/session/domain"
)

type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(conn *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: conn, now: time.Now}
}

// Create persists the session. A duplicate session id maps to domain.ErrSessionConflict.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (session_id, user_id, token_hash, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.TokenHash, s.ExpiresAt.UTC(), timeToNullTime(s.RevokedAt), createdAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", domain.ErrSessionConflict, s.ID)
	}
	return err
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	var revoked sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_sessions WHERE session_id = $1`, id,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &revoked, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.RevokedAt = nullTimeToPtr(revoked)
	return &s, nil
}

// Revoke marks the session revoked. The revoked_at IS NULL guard makes concurrent
// callers race on the row lock; only one sees a row affected.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_sessions SET revoked_at = $2 WHERE session_id = $1 AND revoked_at IS NULL`,
		id, r.now().UTC())
	return affectedOne(res, err)
}

// RevokeForUser revokes the session only when it belongs to userID.
func (r *PostgresRepository) RevokeForUser(ctx context.Context, id, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_sessions SET revoked_at = $3 WHERE session_id = $1 AND user_id = $2 AND revoked_at IS NULL`,
		id, userID, r.now().UTC())
	return affectedOne(res, err)
}

// RevokeAllSessionsByUser revokes all active sessions for the given user.
func (r *PostgresRepository) RevokeAllSessionsByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, r.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
