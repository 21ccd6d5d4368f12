package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-core/backend/internal/tenant/domain"
)

type countingRepo struct {
	Repository
	slugCalls   atomic.Int32
	domainCalls atomic.Int32
}

func (c *countingRepo) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	c.slugCalls.Add(1)
	return c.Repository.GetBySlug(ctx, slug)
}

func (c *countingRepo) GetByDomain(ctx context.Context, host string) (*domain.Tenant, error) {
	c.domainCalls.Add(1)
	return c.Repository.GetByDomain(ctx, host)
}

func newCached(t *testing.T) (*CachedRepository, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &countingRepo{Repository: NewMemoryRepository(
		&domain.Tenant{ID: "t-acme", Slug: "acme", Name: "Acme Recruiting", Domain: "jobs.acme.com"},
	)}
	return NewCachedRepository(store, client, time.Minute, zerolog.Nop()), store, mr
}

func TestCachedRepository_ReadThrough(t *testing.T) {
	ctx := context.Background()
	cached, store, mr := newCached(t)

	for i := 0; i < 3; i++ {
		got, err := cached.GetBySlug(ctx, "acme")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "t-acme", got.ID)
	}
	assert.EqualValues(t, 1, store.slugCalls.Load())
	assert.True(t, mr.Exists("tenant:slug:acme"))
	assert.Equal(t, time.Minute, mr.TTL("tenant:slug:acme"))

	got, err := cached.GetByDomain(ctx, "jobs.acme.com")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Slug)
	_, _ = cached.GetByDomain(ctx, "jobs.acme.com")
	assert.EqualValues(t, 1, store.domainCalls.Load())

	mr.FastForward(2 * time.Minute)
	_, _ = cached.GetBySlug(ctx, "acme")
	assert.EqualValues(t, 2, store.slugCalls.Load())
}

func TestCachedRepository_MissesAreNotCached(t *testing.T) {
	ctx := context.Background()
	cached, store, mr := newCached(t)

	got, err := cached.GetBySlug(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("tenant:slug:nobody"))
	_, _ = cached.GetBySlug(ctx, "nobody")
	assert.EqualValues(t, 2, store.slugCalls.Load())
}

func TestCachedRepository_FallsThroughWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	cached, store, mr := newCached(t)
	mr.Close()

	got, err := cached.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.EqualValues(t, 1, store.slugCalls.Load())
}

func TestCachedRepository_CorruptEntryIsReloaded(t *testing.T) {
	ctx := context.Background()
	cached, store, mr := newCached(t)
	require.NoError(t, mr.Set("tenant:slug:acme", "{not json"))

	got, err := cached.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "t-acme", got.ID)
	assert.EqualValues(t, 1, store.slugCalls.Load())
}

func TestCachedRepository_Invalidate(t *testing.T) {
	ctx := context.Background()
	cached, _, mr := newCached(t)
	tn, _ := cached.GetBySlug(ctx, "acme")
	_, _ = cached.GetByDomain(ctx, "jobs.acme.com")

	require.NoError(t, cached.Invalidate(ctx, tn))
	assert.False(t, mr.Exists("tenant:slug:acme"))
	assert.False(t, mr.Exists("tenant:domain:jobs.acme.com"))
}
