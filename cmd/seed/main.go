// seed upserts the development tenants and their admin users: go run ./cmd/seed.
// Idempotent: existing tenants keep their ids; existing users get the new password hash.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"saas-core/backend/internal/config"
	"saas-core/backend/internal/db"
	"saas-core/backend/internal/logger"
	"saas-core/backend/internal/platform/redisx"
	"saas-core/backend/internal/security"
	tenantdomain "saas-core/backend/internal/tenant/domain"
	tenantrepo "saas-core/backend/internal/tenant/repository"
	userdomain "saas-core/backend/internal/user/domain"
	userrepo "saas-core/backend/internal/user/repository"
)

type seedTenant struct {
	slug, name, adminEmail string
}

var seedTenants = []seedTenant{
	{slug: "acme", name: "Acme Recruiting", adminEmail: "admin@acme.com"},
	{slug: "globex", name: "Globex Staffing", adminEmail: "admin@globex.com"},
}

func main() {
	password := flag.String("password", "admin123", "Password for the seeded admin users")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Env, nil)
	if err := run(cfg, *password, log); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func run(cfg *config.Config, password string, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxOpenConns: 2})
	if err != nil {
		return err
	}
	defer conn.Close()

	hasher, err := security.NewPasswordHasher(cfg.PasswordHasher, cfg.Argon2Params(), cfg.BcryptCost)
	if err != nil {
		return err
	}
	passwordHash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	// Seeded tenants may already sit in the API's tenant cache with stale fields.
	var cache *tenantrepo.CachedRepository
	if cfg.RedisURL != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = tenantrepo.NewCachedRepository(tenantrepo.NewPostgresRepository(conn), rdb, cfg.TenantCacheTTL, log)
	}

	tenants := tenantrepo.NewPostgresRepository(conn)
	users := userrepo.NewPostgresRepository(conn)
	now := time.Now().UTC()
	for _, st := range seedTenants {
		tn := &tenantdomain.Tenant{
			ID:        uuid.NewString(),
			Slug:      st.slug,
			Name:      st.name,
			CreatedAt: now,
		}
		tenantID, err := tenants.Upsert(ctx, tn)
		if err != nil {
			return fmt.Errorf("upsert tenant %s: %w", st.slug, err)
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, tn); err != nil {
				log.Warn().Err(err).Str("tenant", st.slug).Msg("tenant cache invalidation failed")
			}
		}
		userID, err := users.Upsert(ctx, &userdomain.User{
			ID:           uuid.NewString(),
			TenantID:     tenantID,
			Email:        st.adminEmail,
			PasswordHash: passwordHash,
			Role:         userdomain.RoleAdmin,
			IsActive:     true,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("upsert user %s: %w", st.adminEmail, err)
		}
		log.Info().Str("tenant", st.slug).Str("tenant_id", tenantID).Str("email", st.adminEmail).Str("user_id", userID).Msg("seeded")
	}
	return nil
}
