// Package rediscache provides a Redis-backed snapshot cache shared by every server
// process. Each scope is one hash with a field per currency.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure Cache implements cache.Snapshots
var _ cache.Snapshots = (*Cache)(nil)

const namespace = "splitledger:snapshot"

// putScript writes a snapshot field only if it is not older than the cached one.
var putScript = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], ARGV[1])
if cur then
  local v = cjson.decode(cur)["version"]
  if v and v > tonumber(ARGV[3]) then
    return 0
  end
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
if tonumber(ARGV[4]) > 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[4])
end
return 1
`)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int

	// TTL bounds how long an untouched scope stays cached. Zero keeps it
	// until invalidated.
	TTL time.Duration
}

// Cache stores snapshots in Redis.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

type entry struct {
	Version   int64            `json:"version"`
	Positions map[string]int64 `json:"positions"`
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewWithClient(client, opts.TTL), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func key(scope models.Scope) string {
	return namespace + ":" + scope.Key()
}

func (c *Cache) Get(ctx context.Context, scope models.Scope, currency string) (cache.Snapshot, error) {
	raw, err := c.client.HGet(ctx, key(scope), currency).Bytes()
	if errors.Is(err, redis.Nil) {
		return cache.Snapshot{}, cache.ErrMiss
	}
	if err != nil {
		return cache.Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return cache.Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	snap := cache.Snapshot{
		Version:   storage.Version(e.Version),
		Positions: make(map[string]money.Amount, len(e.Positions)),
	}
	for user, amount := range e.Positions {
		snap.Positions[user] = money.Amount(amount)
	}
	return snap, nil
}

// Put stores snap unless a newer version is already cached.
func (c *Cache) Put(ctx context.Context, scope models.Scope, currency string, snap cache.Snapshot) error {
	e := entry{Version: int64(snap.Version), Positions: make(map[string]int64, len(snap.Positions))}
	for user, amount := range snap.Positions {
		e.Positions[user] = int64(amount)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	err = putScript.Run(ctx, c.client, []string{key(scope)},
		currency, string(raw), e.Version, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, scope models.Scope) error {
	if err := c.client.Del(ctx, key(scope)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}
