package leases

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// acquireScript grants or extends the lease atomically.
// KEYS[1] = lease key
// ARGV[1] = user id, ARGV[2] = device id
// ARGV[3] = now (unix ms), ARGV[4] = ttl (ms)
// Returns {granted, user, device, acquired_ms, pttl_ms}.
var acquireScript = redis.NewScript(`
local cur = redis.call("HMGET", KEYS[1], "user", "device", "acquired")
if not cur[1] or (cur[1] == ARGV[1] and cur[2] == ARGV[2]) then
    local acquired = cur[3]
    if not cur[1] then
        acquired = ARGV[3]
    end
    redis.call("HSET", KEYS[1], "user", ARGV[1], "device", ARGV[2], "acquired", acquired)
    redis.call("PEXPIRE", KEYS[1], ARGV[4])
    return {1, ARGV[1], ARGV[2], acquired, tonumber(ARGV[4])}
end
return {0, cur[1], cur[2], cur[3], redis.call("PTTL", KEYS[1])}
`)

// renewScript extends the lease only for its holder.
// KEYS[1] = lease key; ARGV[1] = user, ARGV[2] = device, ARGV[3] = ttl (ms)
var renewScript = redis.NewScript(`
local cur = redis.call("HMGET", KEYS[1], "user", "device")
if cur[1] == ARGV[1] and cur[2] == ARGV[2] then
    redis.call("PEXPIRE", KEYS[1], ARGV[3])
    return 1
end
return 0
`)

// releaseScript deletes the lease only for its holder.
var releaseScript = redis.NewScript(`
local cur = redis.call("HMGET", KEYS[1], "user", "device")
if cur[1] == ARGV[1] and cur[2] == ARGV[2] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// getScript returns {user, device, acquired_ms, pttl_ms} or an empty list.
var getScript = redis.NewScript(`
local cur = redis.call("HMGET", KEYS[1], "user", "device", "acquired")
if not cur[1] then
    return {}
end
return {cur[1], cur[2], cur[3], redis.call("PTTL", KEYS[1])}
`)

// RedisRepository keeps each lease in a hash whose key TTL is the lease TTL,
// so expiry needs no sweeping.
type RedisRepository struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{client: client, prefix: "draftkeeper:lease:", now: time.Now}
}

func (r *RedisRepository) key(draftID string) string {
	return r.prefix + draftID
}

func (r *RedisRepository) Acquire(ctx context.Context, draftID, userID, deviceID string, ttl time.Duration) (*models.Lease, bool, error) {
	now := r.now().UTC()

	res, err := acquireScript.Run(ctx, r.client, []string{r.key(draftID)},
		userID, deviceID, now.UnixMilli(), ttl.Milliseconds()).Slice()
	if err != nil {
		return nil, false, fmt.Errorf("redis error: %w", err)
	}
	if len(res) != 5 {
		return nil, false, fmt.Errorf("redis error: unexpected acquire reply %v", res)
	}

	l, err := leaseFromReply(draftID, res[1:], now)
	if err != nil {
		return nil, false, err
	}
	granted, _ := res[0].(int64)
	return l, granted == 1, nil
}

func (r *RedisRepository) Renew(ctx context.Context, draftID, userID, deviceID string, ttl time.Duration) (bool, error) {
	n, err := renewScript.Run(ctx, r.client, []string{r.key(draftID)}, userID, deviceID, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n == 1, nil
}

func (r *RedisRepository) Release(ctx context.Context, draftID, userID, deviceID string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(draftID)}, userID, deviceID).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, draftID string) (*models.Lease, error) {
	res, err := getScript.Run(ctx, r.client, []string{r.key(draftID)}).Slice()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(res) == 0 {
		return nil, common.ErrorNotFound
	}
	return leaseFromReply(draftID, res, r.now().UTC())
}

// DeleteExpired is a no-op: Redis drops expired keys itself.
func (r *RedisRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// leaseFromReply decodes {user, device, acquired_ms, pttl_ms}.
func leaseFromReply(draftID string, v []any, now time.Time) (*models.Lease, error) {
	if len(v) != 4 {
		return nil, fmt.Errorf("redis error: unexpected lease reply %v", v)
	}
	user, _ := v[0].(string)
	device, _ := v[1].(string)

	acquiredMs, err := toInt64(v[2])
	if err != nil {
		return nil, fmt.Errorf("redis error: acquired: %w", err)
	}
	pttl, err := toInt64(v[3])
	if err != nil {
		return nil, fmt.Errorf("redis error: pttl: %w", err)
	}

	return &models.Lease{
		DraftID:    draftID,
		UserID:     user,
		DeviceID:   device,
		AcquiredAt: time.UnixMilli(acquiredMs).UTC(),
		ExpiresAt:  now.Add(time.Duration(pttl) * time.Millisecond),
	}, nil
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
