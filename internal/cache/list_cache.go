// Package cache holds a short-lived Redis cache in front of the
// materials list query, following queue.NewRedisQueue's connection
// idiom but against its own logical database concern.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/freedkr/moonshot-translate/internal/config"
	"github.com/freedkr/moonshot-translate/internal/model"
)

// materialListTTL bounds how stale a cached listing can be (spec §5:
// the list endpoint is read-heavy and tolerates brief staleness).
const materialListTTL = 60 * time.Second

// ListCache is a short-TTL Redis cache of a client's material listing.
// The orchestrator calls Invalidate after its writes; the materials
// list endpoint does not call Get or Set and reads MaterialStore
// directly.
type ListCache struct {
	rdb *redis.Client
	ctx context.Context
}

// NewListCache connects to the Redis instance described by qcfg.
func NewListCache(qcfg config.QueueConfig) (*ListCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     qcfg.Addr,
		Password: qcfg.Password,
		DB:       qcfg.DB,
	})
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}
	return &ListCache{rdb: rdb, ctx: ctx}, nil
}

func (c *ListCache) key(clientID string) string {
	return "materials:list:" + clientID
}

// Get returns the cached listing for clientID, or ok=false on a miss
// or decode error (a decode error is treated as a miss, not fatal).
func (c *ListCache) Get(ctx context.Context, clientID string) ([]*model.Material, bool) {
	raw, err := c.rdb.Get(ctx, c.key(clientID)).Bytes()
	if err != nil {
		return nil, false
	}
	var materials []*model.Material
	if err := json.Unmarshal(raw, &materials); err != nil {
		return nil, false
	}
	return materials, true
}

// Set populates the cache for clientID with materials, expiring after
// materialListTTL.
func (c *ListCache) Set(ctx context.Context, clientID string, materials []*model.Material) {
	raw, err := json.Marshal(materials)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, c.key(clientID), raw, materialListTTL)
}

// Invalidate drops the cached listing for clientID. Called after any
// insert, update, or delete so the next list call re-reads the store.
func (c *ListCache) Invalidate(ctx context.Context, clientID string) {
	c.rdb.Del(ctx, c.key(clientID))
}

// Close releases the underlying Redis connection.
func (c *ListCache) Close() error {
	return c.rdb.Close()
}
