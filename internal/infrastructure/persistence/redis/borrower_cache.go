package redis

import (
	"context"
	"errors"
	"time"

	"github.com/classup/rental-desk/internal/domain/inventory"
)

// ValueStore is the part of Cache that BorrowerCache uses.
type ValueStore interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

var _ ValueStore = (*Cache)(nil)

// BorrowerCache is a read-through cache in front of a BorrowerDirectory.
// Cache failures never fail a lookup; the directory answers instead.
type BorrowerCache struct {
	cache ValueStore
	next  inventory.BorrowerDirectory
	ttl   time.Duration
}

var _ inventory.BorrowerDirectory = (*BorrowerCache)(nil)

// NewBorrowerCache creates a BorrowerCache. Zero ttl uses TTLBorrowerCache.
func NewBorrowerCache(cache ValueStore, next inventory.BorrowerDirectory, ttl time.Duration) *BorrowerCache {
	if ttl <= 0 {
		ttl = TTLBorrowerCache
	}
	return &BorrowerCache{cache: cache, next: next, ttl: ttl}
}

// Lookup implements inventory.BorrowerDirectory.
func (c *BorrowerCache) Lookup(ctx context.Context, ids []string) (map[string]inventory.Borrower, error) {
	out := make(map[string]inventory.Borrower, len(ids))
	asked := make(map[string]struct{}, len(ids))
	var missing []string

	for _, id := range ids {
		if _, dup := asked[id]; dup {
			continue
		}
		asked[id] = struct{}{}
		var b inventory.Borrower
		if err := c.cache.Get(ctx, BorrowerKey(id), &b); err == nil {
			out[id] = b
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return out, nil
	}

	found, err := c.next.Lookup(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, b := range found {
		out[id] = b
		_ = c.cache.Set(ctx, BorrowerKey(id), b, c.ttl)
	}
	return out, nil
}

// Invalidate drops cached entries so the next lookup reads the directory.
func (c *BorrowerCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BorrowerKey(id)
	}
	if err := c.cache.Delete(ctx, keys...); err != nil && !errors.Is(err, ErrCacheMiss) {
		return err
	}
	return nil
}
