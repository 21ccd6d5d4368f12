package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"saas-core/backend/internal/session/domain"
)

const (
	sessionKeyPrefix = "session:"
	userKeyPrefix    = "session:user:"
)

// ErrCorruptSession is returned when a stored session hash is missing fields.
var ErrCorruptSession = errors.New("corrupt session record")

// Each script touches exactly one key, declared in KEYS, so the store also runs on
// Redis Cluster where a session hash and its user index live in different slots.

// indexSessionScript adds a session id to the user index and keeps the index alive at
// least as long as its newest member.
const indexSessionScript = `
redis.call("SADD", KEYS[1], ARGV[1])
local ttl = redis.call("PTTL", KEYS[1])
local expires = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
if ttl < 0 or now + ttl < expires then
  redis.call("PEXPIREAT", KEYS[1], ARGV[2])
end
return 1
`

// createSessionScript inserts the session hash only if the id is unused.
const createSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "user_id", ARGV[1], "token_hash", ARGV[2], "expires_at", ARGV[3], "created_at", ARGV[4])
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
return 1
`

// revokeSessionScript sets revoked_at once and returns the owner, or "" when nothing
// changed. ARGV[2], when non-empty, must match the owner.
const revokeSessionScript = `
local owner = redis.call("HGET", KEYS[1], "user_id")
if not owner then
  return ""
end
if ARGV[2] ~= "" and owner ~= ARGV[2] then
  return ""
end
if redis.call("HEXISTS", KEYS[1], "revoked_at") == 1 then
  return ""
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1])
return owner
`

var (
	indexSessionLua  = redis.NewScript(indexSessionScript)
	createSessionLua = redis.NewScript(createSessionScript)
	revokeSessionLua = redis.NewScript(revokeSessionScript)
)

// RedisRepository stores each session as a hash that expires with the session, plus a
// per-user set of active session ids used by RevokeAllSessionsByUser.
type RedisRepository struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisRepository returns a session repository backed by client.
func NewRedisRepository(client redis.Cmdable) *RedisRepository {
	return &RedisRepository{client: client, now: time.Now}
}

// Create indexes the id under the user before writing the hash, so a session is never
// live without being reachable by RevokeAllSessionsByUser.
func (r *RedisRepository) Create(ctx context.Context, s *domain.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	indexKey := userKeyPrefix + s.UserID
	if err := indexSessionLua.Run(ctx, r.client, []string{indexKey},
		s.ID, s.ExpiresAt.UnixMilli(), createdAt.UnixMilli(),
	).Err(); err != nil {
		return fmt.Errorf("redis index session: %w", err)
	}
	ok, err := createSessionLua.Run(ctx, r.client, []string{sessionKeyPrefix + s.ID},
		s.UserID, s.TokenHash, s.ExpiresAt.UnixMilli(), createdAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis create session: %w", err)
	}
	if ok == 0 {
		// The id belongs to another session; drop it from this user's index.
		_ = r.client.SRem(ctx, indexKey, s.ID).Err()
		return fmt.Errorf("%w: %s", domain.ErrSessionConflict, s.ID)
	}
	return nil
}

func (r *RedisRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	fields, err := r.client.HGetAll(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseSession(id, fields)
}

func (r *RedisRepository) Revoke(ctx context.Context, id string) (bool, error) {
	return r.revoke(ctx, id, "")
}

func (r *RedisRepository) RevokeForUser(ctx context.Context, id, userID string) (bool, error) {
	return r.revoke(ctx, id, userID)
}

// RevokeAllSessionsByUser revokes every indexed session of the user. Ids whose hash
// already expired are pruned from the index.
func (r *RedisRepository) RevokeAllSessionsByUser(ctx context.Context, userID string) (int64, error) {
	indexKey := userKeyPrefix + userID
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis list user sessions: %w", err)
	}
	var n int64
	var stale []any
	for _, id := range ids {
		ok, err := r.revoke(ctx, id, userID)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			return n, fmt.Errorf("redis prune user sessions: %w", err)
		}
	}
	return n, nil
}

// revoke marks the session revoked and removes it from its owner's index. A failed index
// cleanup is not reported: RevokeAllSessionsByUser prunes ids it cannot revoke.
func (r *RedisRepository) revoke(ctx context.Context, id, userID string) (bool, error) {
	owner, err := revokeSessionLua.Run(ctx, r.client, []string{sessionKeyPrefix + id},
		r.now().UnixMilli(), userID,
	).Text()
	if err != nil {
		return false, fmt.Errorf("redis revoke session: %w", err)
	}
	if owner == "" {
		return false, nil
	}
	_ = r.client.SRem(ctx, userKeyPrefix+owner, id).Err()
	return true, nil
}

func parseSession(id string, f map[string]string) (*domain.Session, error) {
	s := &domain.Session{ID: id, UserID: f["user_id"], TokenHash: f["token_hash"]}
	if s.UserID == "" || s.TokenHash == "" {
		return nil, fmt.Errorf("%w: %s", ErrCorruptSession, id)
	}
	expires, err := parseMillis(f["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("%w: %s expires_at", ErrCorruptSession, id)
	}
	s.ExpiresAt = expires
	if v, ok := f["created_at"]; ok {
		if created, err := parseMillis(v); err == nil {
			s.CreatedAt = created
		}
	}
	if v, ok := f["revoked_at"]; ok {
		revoked, err := parseMillis(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s revoked_at", ErrCorruptSession, id)
		}
		s.RevokedAt = &revoked
	}
	return s, nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
