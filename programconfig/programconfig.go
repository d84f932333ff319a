// Package programconfig retrieves the opaque per-(tenant, program) JSON
// configuration every rule plugin parses into its own typed options, with a
// bounded in-process cache in front of the store using golang-lru, the same
// bounded-caching idiom used elsewhere in the stack. Cached.Put writes
// through to the store; the HTTP config handler writes to the store directly.
package programconfig

import (
	"context"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is the persistence surface. Reads happen within the caller's own
// transaction so job processing observes a consistent snapshot.
type Store interface {
	Get(ctx context.Context, tx any, tenant, programID string) (json.RawMessage, bool, error)
	Put(ctx context.Context, tenant, programID string, cfg json.RawMessage) error
}

type cacheKey struct {
	tenant, programID string
}

// Cached wraps a Store with a bounded LRU cache, invalidated on Cached.Put.
// The PUT /v1/programs/{id}/config handler does not go through Cached, so it
// does not evict entries cached here.
type Cached struct {
	store Store
	cache *lru.Cache[cacheKey, json.RawMessage]
}

// NewCached constructs a cache of the given size in front of store. size<=0
// disables caching.
func NewCached(store Store, size int) *Cached {
	c := &Cached{store: store}
	if size > 0 {
		cache, err := lru.New[cacheKey, json.RawMessage](size)
		if err == nil {
			c.cache = cache
		}
	}
	return c
}

// Get returns the program's JSON config, or (nil, false, nil) if absent.
// Reads go through tx so job processing sees the config as of its own
// transaction snapshot; the cache is only consulted outside a transaction
// (tx == nil), matching how program config is read once per plugin chain
// invocation rather than once per plugin.
func (c *Cached) Get(ctx context.Context, tx any, tenant, programID string) (json.RawMessage, bool, error) {
	key := cacheKey{tenant, programID}
	if tx == nil && c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			return v, true, nil
		}
	}
	cfg, ok, err := c.store.Get(ctx, tx, tenant, programID)
	if err != nil {
		return nil, false, fmt.Errorf("programconfig: get %s/%s: %w", tenant, programID, err)
	}
	if tx == nil && ok && c.cache != nil {
		c.cache.Add(key, cfg)
	}
	return cfg, ok, nil
}

// Put writes a new config and invalidates any cached entry.
func (c *Cached) Put(ctx context.Context, tenant, programID string, cfg json.RawMessage) error {
	if err := c.store.Put(ctx, tenant, programID, cfg); err != nil {
		return fmt.Errorf("programconfig: put %s/%s: %w", tenant, programID, err)
	}
	if c.cache != nil {
		c.cache.Remove(cacheKey{tenant, programID})
	}
	return nil
}
