package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"saas-core/backend/internal/tenant/domain"
)

const tenantColumns = `id, slug, name, domain, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a tenant repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the tenant for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

// GetBySlug returns the tenant with the given subdomain slug, or nil if not found.
func (r *PostgresRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug))
}

// GetByDomain returns the tenant whose custom domain equals host, or nil if not found.
func (r *PostgresRepository) GetByDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	return scanTenant(r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE domain = $1`, strings.ToLower(host)))
}

// Upsert inserts the tenant or updates name and domain of the tenant with the same slug.
// The tenant must have ID set; the stored id is returned.
func (r *PostgresRepository) Upsert(ctx context.Context, t *domain.Tenant) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO tenants (id, slug, name, domain, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, domain = EXCLUDED.domain, updated_at = EXCLUDED.updated_at
		RETURNING id`,
		t.ID, t.Slug, t.Name, sql.NullString{String: strings.ToLower(t.Domain), Valid: t.Domain != ""}, t.CreatedAt,
	).Scan(&id)
	return id, err
}

func scanTenant(row *sql.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	var dom sql.NullString
	var updated sql.NullTime
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &dom, &t.CreatedAt, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Domain = dom.String
	if updated.Valid {
		t.UpdatedAt = &updated.Time
	}
	return &t, nil
}
