package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps expiring counters. Each key starts a window on its first
// increment; the returned duration is the time left in that window.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
}

var _ Store = (*RedisStore)(nil)

// RedisConfig captures the connection parameters of the shared Redis instance.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      bool
	Timeout  time.Duration
	Prefix   string
}

const (
	defaultRedisTimeout = 5 * time.Second
	// DefaultKeyPrefix namespaces every key written by the service.
	DefaultKeyPrefix = "pureharvest:"
)

// incrementScript bumps a counter and starts its window on first use. A key
// that lost its TTL is given a fresh window instead of living forever.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if count == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// redisClient is the subset of go-redis used by the store. Both *redis.Client
// and *redis.ClusterClient satisfy it.
type redisClient interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisStore implements Store on top of go-redis.
type RedisStore struct {
	client redisClient
	prefix string
	closer func() error
}

// NewRedisStore dials Redis and verifies the connection with PING so that
// misconfiguration surfaces during startup.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	cfg.Address = strings.TrimSpace(cfg.Address)
	if cfg.Address == "" {
		return nil, errors.New("redis: address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}

	opts := &redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	if ctx == nil {
		ctx = context.Background()
	}
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Address, err)
	}

	store := NewRedisStoreFromClient(client, cfg.Prefix)
	store.closer = client.Close
	return store, nil
}

// NewRedisStoreFromClient wraps an existing client, e.g. a cluster client
// shared with other components. The caller keeps ownership of the client.
func NewRedisStoreFromClient(client redisClient, prefix string) *RedisStore {
	if client == nil {
		return nil
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Close releases the connection pool when the store owns it.
func (s *RedisStore) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// Ping verifies the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s == nil {
		return errors.New("redis: store is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Ping(ctx).Err()
}

// IncrementWithTTL increments the counter for key and returns the new count
// together with the remaining window.
func (s *RedisStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, errors.New("cache: redis store not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		window = time.Minute
	}

	values, err := incrementScript.Run(ctx, s.client, []string{s.key(key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("redis: increment: %w", err)
	}
	if len(values) != 2 {
		return 0, 0, fmt.Errorf("redis: unexpected increment reply %v", values)
	}

	ttl := time.Duration(values[1]) * time.Millisecond
	if ttl <= 0 {
		ttl = window
	}
	return values[0], ttl, nil
}

// Delete removes keys, ignoring missing ones.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if s == nil {
		return errors.New("cache: redis store not initialised")
	}
	if len(keys) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, s.key(key))
	}
	return s.client.Del(ctx, prefixed...).Err()
}

func (s *RedisStore) key(key string) string {
	normalized := normalizeKey(key)
	if strings.HasPrefix(normalized, s.prefix) {
		return normalized
	}
	return normalizeKey(s.prefix + normalized)
}

// normalizeKey collapses repeated colons.
func normalizeKey(key string) string {
	if key == "" {
		return key
	}
	var builder strings.Builder
	builder.Grow(len(key))
	prevColon := false
	for i := 0; i < len(key); i++ {
		ch := key[i]
		if ch == ':' {
			if prevColon {
				continue
			}
			prevColon = true
		} else {
			prevColon = false
		}
		builder.WriteByte(ch)
	}
	return builder.String()
}
