package repository

import (
	"context"
	"sync"

	"saas-core/backend/internal/tenant/domain"
)

// MemoryRepository keeps tenants in process. It backs SESSION_STORE=memory development
// runs without a database and the resolver tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	tenants map[string]*domain.Tenant
}

// NewMemoryRepository returns a repository holding the given tenants.
func NewMemoryRepository(tenants ...*domain.Tenant) *MemoryRepository {
	r := &MemoryRepository{tenants: make(map[string]*domain.Tenant)}
	for _, t := range tenants {
		r.tenants[t.ID] = t
	}
	return r
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyTenant(r.tenants[id]), nil
}

func (r *MemoryRepository) GetBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	return r.find(func(t *domain.Tenant) bool { return t.Slug == slug }), nil
}

func (r *MemoryRepository) GetByDomain(_ context.Context, host string) (*domain.Tenant, error) {
	return r.find(func(t *domain.Tenant) bool { return t.Domain != "" && t.Domain == host }), nil
}

// Upsert stores t keyed by slug and returns the stored id.
func (r *MemoryRepository) Upsert(_ context.Context, t *domain.Tenant) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tenants {
		if existing.Slug == t.Slug {
			existing.Name, existing.Domain = t.Name, t.Domain
			return existing.ID, nil
		}
	}
	r.tenants[t.ID] = copyTenant(t)
	return t.ID, nil
}

func (r *MemoryRepository) find(match func(*domain.Tenant) bool) *domain.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tenants {
		if match(t) {
			return copyTenant(t)
		}
	}
	return nil
}

func copyTenant(t *domain.Tenant) *domain.Tenant {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
