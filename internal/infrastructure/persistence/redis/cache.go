// Package redis implements the rental desk's Redis integrations.
//
// Key components:
//   - Cache: JSON values with TTL, SetNX and pub/sub
//   - ItemLock: cross-process per-item lock for checkout and return
//   - BorrowerCache: read-through cache in front of a BorrowerDirectory
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		PoolSize:     10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrCacheMiss is returned when the requested key is not found in cache.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when Redis connection fails.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when serialization/deserialization fails.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// KEYS & TTLs
// ══════════════════════════════════════════════════════════════════════════════

const (
	PrefixLock     = "lock:"
	PrefixPubSub   = "pubsub:"
	PrefixBorrower = "borrower:"
	PrefixOverdue  = "overdue:"
)

const (
	// TTLItemLock bounds how long a crashed holder can block an item.
	TTLItemLock = 15 * time.Second

	// TTLBorrowerCache is how long roster data is trusted.
	TTLBorrowerCache = 10 * time.Minute

	// TTLOverdueNotice suppresses repeat overdue notices for the same record.
	TTLOverdueNotice = 24 * time.Hour
)

// LockKey generates a key for distributed locks.
func LockKey(resource string) string {
	return PrefixLock + resource
}

// ItemLockKey is the lock key guarding one item.
func ItemLockKey(itemID string) string {
	return LockKey("item:" + itemID)
}

// PubSubChannel generates a pub/sub channel name.
func PubSubChannel(eventType string) string {
	return PrefixPubSub + eventType
}

// BorrowerKey generates a cache key for one borrower.
func BorrowerKey(id string) string {
	return PrefixBorrower + id
}

// OverdueNoticeKey marks that an overdue notice went out for a record.
func OverdueNoticeKey(recordID string) string {
	return PrefixOverdue + recordID
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Cache wraps a go-redis client with JSON serialization.
type Cache struct {
	client redis.Cmdable
	closer func() error
}

// Connect opens a go-redis client for cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}
	return client, nil
}

// NewCache connects to Redis and verifies the connection.
func NewCache(cfg Config) (*Cache, error) {
	client, err := Connect(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &Cache{client: client, closer: client.Close}, nil
}

// NewCacheFromClient wraps an existing client. The caller keeps ownership of it.
func NewCacheFromClient(client redis.Cmdable) *Cache {
	return &Cache{client: client, closer: func() error { return nil }}
}

// Client returns the underlying client.
func (c *Cache) Client() redis.Cmdable {
	return c.client
}

// Close closes the Redis connection if the cache owns it.
func (c *Cache) Close() error {
	return c.closer()
}

// Ping checks if Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Set stores value as JSON under key.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get loads the JSON value under key into dest.
// Returns ErrCacheMiss if the key doesn't exist.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return nil
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// SetNX sets key only if it does not exist and reports whether it did.
func (c *Cache) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrCacheKeyEmpty
	}
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

// MarkOnce records key for ttl and reports whether this call set it first.
func (c *Cache) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl)
}

// Unmark forgets a key set by MarkOnce.
func (c *Cache) Unmark(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

// Publish publishes message as JSON to a channel.
func (c *Cache) Publish(ctx context.Context, channel string, message any) error {
	if channel == "" {
		return ErrCacheKeyEmpty
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return c.client.Publish(ctx, channel, data).Err()
}
