package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"saas-core/backend/internal/db"
	"saas-core/backend/internal/db/migrate"
)

func TestPostgresRepository_Contract(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	require.NoError(t, migrate.Run(dsn, "up", zerolog.Nop()))
	conn, err := db.Open(context.Background(), dsn, db.DefaultPoolOptions)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	tenantID := uuid.NewString()
	_, err = conn.ExecContext(ctx, `INSERT INTO tenants (id, slug, name) VALUES ($1, $2, 'Contract')`, tenantID, "c-"+tenantID[:8])
	require.NoError(t, err)
	var users [2]string
	for i := range users {
		users[i] = uuid.NewString()
		_, err = conn.ExecContext(ctx,
			`INSERT INTO users (id, tenant_id, email, password_hash, role) VALUES ($1, $2, $3, 'x', 'MEMBER')`,
			users[i], tenantID, users[i]+"@contract.test")
		require.NoError(t, err)
	}
	t.Cleanup(func() { _, _ = conn.ExecContext(ctx, `DELETE FROM tenants WHERE id = $1`, tenantID) })

	runContract(t, NewPostgresRepository(conn), users)
}
