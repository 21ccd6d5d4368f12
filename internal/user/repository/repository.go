package repository

import (
	"context"

	"saas-core/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	// GetActiveByTenantAndEmail returns the active user with the normalized email in the tenant, or nil.
	GetActiveByTenantAndEmail(ctx context.Context, tenantID, email string) (*domain.User, error)
	// Upsert inserts the user or, when (tenant_id, email) exists, updates its hash, role and active flag.
	// It returns the stored user id.
	Upsert(ctx context.Context, u *domain.User) (string, error)
}
