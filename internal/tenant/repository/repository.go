package repository

import (
	"context"

	"saas-core/backend/internal/tenant/domain"
)

// Repository defines persistence for tenants. Lookups return (nil, nil) when no tenant matches.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	GetByDomain(ctx context.Context, domain string) (*domain.Tenant, error)
}

// Writer is implemented by stores that can create or update tenants (used by the seed command).
type Writer interface {
	Upsert(ctx context.Context, t *domain.Tenant) (string, error)
}
