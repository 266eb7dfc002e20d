package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sentrydesk/internal/network"
)

// RedisNetworkProvider is the Redis-backed network.Provider named in
// spec §6: a read-only lookup cache from {ip, device_id} to shared-
// infrastructure evidence, populated out-of-band by whatever process
// maintains the shared-account/shared-device graph.
type RedisNetworkProvider struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisNetworkProvider constructs a RedisNetworkProvider. ttl is
// only used by Put, to match how the populating process is expected to
// refresh entries; zero means no expiry.
func NewRedisNetworkProvider(client *redis.Client, prefix string, ttl time.Duration) *RedisNetworkProvider {
	return &RedisNetworkProvider{client: client, prefix: prefix, ttl: ttl}
}

func (p *RedisNetworkProvider) key(ipAddress, deviceID string) string {
	return fmt.Sprintf("%s:%s|%s", p.prefix, ipAddress, deviceID)
}

// Lookup implements network.Provider.
func (p *RedisNetworkProvider) Lookup(ctx context.Context, ipAddress, deviceID string) (*network.Context, bool, error) {
	data, err := p.client.Get(ctx, p.key(ipAddress, deviceID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("looking up network context in redis: %w", err)
	}
	var nc network.Context
	if err := json.Unmarshal(data, &nc); err != nil {
		return nil, false, fmt.Errorf("decoding network context: %w", err)
	}
	return &nc, true, nil
}

// Put writes or refreshes one {ip, device_id} entry. Used by whatever
// out-of-band process maintains the shared-infrastructure graph, not
// by the decision core itself.
func (p *RedisNetworkProvider) Put(ctx context.Context, ipAddress, deviceID string, nc network.Context) error {
	data, err := json.Marshal(nc)
	if err != nil {
		return fmt.Errorf("encoding network context: %w", err)
	}
	return p.client.Set(ctx, p.key(ipAddress, deviceID), data, p.ttl).Err()
}

// RedisPolicyCounters is the Redis-backed policy.Counters named in
// spec §6's domain stack for distributed deployments: the consecutive-
// high-risk run and the per-user daily action count are kept as Redis
// keys instead of in-process maps, so every decision-core process
// behind a load balancer sees the same counters for a given user.
type RedisPolicyCounters struct {
	client *redis.Client
	prefix string
}

// NewRedisPolicyCounters constructs a RedisPolicyCounters.
func NewRedisPolicyCounters(client *redis.Client, prefix string) *RedisPolicyCounters {
	return &RedisPolicyCounters{client: client, prefix: prefix}
}

// BumpConsecutiveHighRisk implements policy.Counters. A non-high-risk
// login deletes the key (resetting the run to zero); a high-risk login
// increments it. Redis errors are treated as a reset to zero rather
// than propagated, so a transient Redis outage degrades to "never
// trip the consecutive-high-risk rule" instead of failing the request
// -- the critical-risk-threshold and disagreement rules ahead of it in
// the engine's rule order still catch genuinely dangerous logins.
func (c *RedisPolicyCounters) BumpConsecutiveHighRisk(ctx context.Context, userID string, isHighRisk bool) int {
	key := fmt.Sprintf("%s:chr:%s", c.prefix, userID)
	if !isHighRisk {
		c.client.Del(ctx, key)
		return 0
	}
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// BumpDailyCount implements policy.Counters, keyed per user per UTC
// calendar day with a 48-hour expiry so stale keys don't accumulate.
func (c *RedisPolicyCounters) BumpDailyCount(ctx context.Context, userID, dayKey string) int {
	key := fmt.Sprintf("%s:daily:%s:%s", c.prefix, userID, dayKey)
	n, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0
	}
	if n == 1 {
		c.client.Expire(ctx, key, 48*time.Hour)
	}
	return int(n)
}
