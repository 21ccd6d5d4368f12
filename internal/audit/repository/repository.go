package repository

import (
	"context"

	"saas-core/backend/internal/audit/domain"
)

// Repository defines persistence for audit logs.
type Repository interface {
	ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
