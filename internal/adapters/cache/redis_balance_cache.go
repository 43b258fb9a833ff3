// Package cache holds BalanceCache implementations.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	portsrepo "github.com/SscSPs/credit_ledger_app/internal/core/ports/repositories"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const keyPrefix = "credit_ledger:balance:"

// setIfNewerScript writes {balance, version} only when the stored version is older, or
// equal with the balance removed by an invalidation.
// KEYS[1] balance hash, ARGV[1] balance, ARGV[2] version, ARGV[3] ttl in milliseconds.
const setIfNewerScript = `
local current = tonumber(redis.call('HGET', KEYS[1], 'version') or '-1')
local incoming = tonumber(ARGV[2])
if current > incoming then
    return 0
end
if current == incoming and redis.call('HEXISTS', KEYS[1], 'balance') == 1 then
    return 0
end
redis.call('HSET', KEYS[1], 'balance', ARGV[1], 'version', ARGV[2])
if tonumber(ARGV[3]) > 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`

// tombstoneScript removes the balance and raises the stored version to at least ARGV[1].
// KEYS[1] balance hash, ARGV[1] version, ARGV[2] ttl in milliseconds.
const tombstoneScript = `
local current = tonumber(redis.call('HGET', KEYS[1], 'version') or '-1')
local floor = tonumber(ARGV[1])
if floor > current then
    current = floor
end
redis.call('HDEL', KEYS[1], 'balance')
redis.call('HSET', KEYS[1], 'version', current)
if tonumber(ARGV[2]) > 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`

// RedisBalanceCache stores balance snapshots as redis hashes keyed by account id.
type RedisBalanceCache struct {
	client     redis.UniversalClient
	ttl        time.Duration
	setIfNewer *redis.Script
	tombstone  *redis.Script
}

var _ portsrepo.BalanceCache = (*RedisBalanceCache)(nil)

// NewRedisBalanceCache wraps an existing client. A zero ttl keeps entries until invalidated.
func NewRedisBalanceCache(client redis.UniversalClient, ttl time.Duration) *RedisBalanceCache {
	return &RedisBalanceCache{
		client:     client,
		ttl:        ttl,
		setIfNewer: redis.NewScript(setIfNewerScript),
		tombstone:  redis.NewScript(tombstoneScript),
	}
}

// NewRedisClient parses a redis:// URL and verifies the server is reachable.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func balanceKey(accountID string) string {
	return keyPrefix + accountID
}

// GetBalance returns the cached snapshot, or nil on a miss.
func (c *RedisBalanceCache) GetBalance(ctx context.Context, accountID string) (*portsrepo.CachedBalance, error) {
	values, err := c.client.HMGet(ctx, balanceKey(accountID), "balance", "version").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached balance for %s: %w", accountID, err)
	}
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return nil, nil
	}

	rawBalance, ok1 := values[0].(string)
	rawVersion, ok2 := values[1].(string)
	if !ok1 || !ok2 {
		return nil, nil
	}
	balance, err := decimal.NewFromString(rawBalance)
	if err != nil {
		return nil, fmt.Errorf("corrupt cached balance for %s: %w", accountID, err)
	}
	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt cached version for %s: %w", accountID, err)
	}
	return &portsrepo.CachedBalance{Balance: balance, Version: version}, nil
}

// SetBalance stores the snapshot unless a newer version is already cached.
func (c *RedisBalanceCache) SetBalance(ctx context.Context, accountID string, snapshot portsrepo.CachedBalance) error {
	keys := []string{balanceKey(accountID)}
	args := []interface{}{snapshot.Balance.String(), snapshot.Version, c.ttl.Milliseconds()}
	if err := c.setIfNewer.Run(ctx, c.client, keys, args...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to cache balance for %s: %w", accountID, err)
	}
	return nil
}

// Invalidate replaces the cached balance with a tombstone carrying version.
func (c *RedisBalanceCache) Invalidate(ctx context.Context, accountID string, version int64) error {
	keys := []string{balanceKey(accountID)}
	if err := c.tombstone.Run(ctx, c.client, keys, version, c.ttl.Milliseconds()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to invalidate cached balance for %s: %w", accountID, err)
	}
	return nil
}
