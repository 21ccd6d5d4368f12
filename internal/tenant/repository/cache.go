package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"saas-core/backend/internal/tenant/domain"
)

const (
	domainKeyPrefix = "tenant:domain:"
	slugKeyPrefix   = "tenant:slug:"
)

// CachedRepository is a read-through Redis cache in front of another Repository.
// Only hits are cached. Redis failures are logged and fall through to the store.
type CachedRepository struct {
	next   Repository
	client redis.Cmdable
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedRepository wraps next with a cache whose entries live for ttl.
func NewCachedRepository(next Repository, client redis.Cmdable, ttl time.Duration, log zerolog.Logger) *CachedRepository {
	return &CachedRepository{next: next, client: client, ttl: ttl, log: log}
}

// GetByID is not cached; it is only used by authenticated admin routes.
func (c *CachedRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return c.next.GetByID(ctx, id)
}

// GetBySlug returns the tenant for slug, consulting the cache first.
func (c *CachedRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return c.get(ctx, slugKeyPrefix+slug, func(ctx context.Context) (*domain.Tenant, error) {
		return c.next.GetBySlug(ctx, slug)
	})
}

// GetByDomain returns the tenant for a custom domain, consulting the cache first.
func (c *CachedRepository) GetByDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	return c.get(ctx, domainKeyPrefix+host, func(ctx context.Context) (*domain.Tenant, error) {
		return c.next.GetByDomain(ctx, host)
	})
}

// Invalidate drops the cached entries for t.
func (c *CachedRepository) Invalidate(ctx context.Context, t *domain.Tenant) error {
	keys := []string{slugKeyPrefix + t.Slug}
	if t.Domain != "" {
		keys = append(keys, domainKeyPrefix+t.Domain)
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CachedRepository) get(ctx context.Context, key string, load func(context.Context) (*domain.Tenant, error)) (*domain.Tenant, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var t domain.Tenant
		if jerr := json.Unmarshal(raw, &t); jerr == nil {
			return &t, nil
		}
		c.log.Warn().Str("key", key).Msg("tenant cache: dropping undecodable entry")
		_ = c.client.Del(ctx, key).Err()
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Str("key", key).Msg("tenant cache: read failed")
	}

	t, err := load(ctx)
	if err != nil || t == nil {
		return t, err
	}
	payload, err := json.Marshal(t)
	if err == nil {
		err = c.client.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("tenant cache: write failed")
	}
	return t, nil
}
