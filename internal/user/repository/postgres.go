package repository

import (
	"context"
	"database/sql"
	"errors"

	"saas-core/backend/internal/user/domain"
)

const userColumns = `id, tenant_id, email, password_hash, role, is_active, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetActiveByTenantAndEmail returns the active user with the given email in the tenant, or nil if not found.
func (r *PostgresRepository) GetActiveByTenantAndEmail(ctx context.Context, tenantID, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 AND email = $2 AND is_active`,
		tenantID, domain.NormalizeEmail(email))
	return scanUser(row)
}

// Upsert inserts or updates the user keyed by (tenant_id, email). The user must have ID set.
func (r *PostgresRepository) Upsert(ctx context.Context, u *domain.User) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, tenant_id, email, password_hash, role, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (tenant_id, email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    role = EXCLUDED.role,
		    is_active = EXCLUDED.is_active,
		    updated_at = EXCLUDED.updated_at
		RETURNING id`,
		u.ID, u.TenantID, domain.NormalizeEmail(u.Email), u.PasswordHash, string(u.Role), u.IsActive, u.CreatedAt,
	).Scan(&id)
	return id, err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = domain.Role(role)
	return &u, nil
}
