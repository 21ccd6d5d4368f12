package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"saas-core/backend/internal/session/domain"
)

// MemoryRepository keeps sessions in process memory. Used by SESSION_STORE=memory and tests.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

// NewMemoryRepository returns an empty in-memory session store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, s *domain.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionConflict, s.ID)
	}
	c := *s
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	r.sessions[s.ID] = &c
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (r *MemoryRepository) Revoke(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeLocked(id, ""), nil
}

func (r *MemoryRepository) RevokeForUser(_ context.Context, id, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revokeLocked(id, userID), nil
}

func (r *MemoryRepository) RevokeAllSessionsByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.UserID == userID && r.revokeLocked(id, "") {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) revokeLocked(id, userID string) bool {
	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil || (userID != "" && s.UserID != userID) {
		return false
	}
	now := r.now()
	s.RevokedAt = &now
	return true
}
