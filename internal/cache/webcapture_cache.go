package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/freedkr/moonshot-translate/internal/config"
)

// webCaptureTTL bounds how long a captured translated PDF is reused
// for a given URL before the web-capture stage re-renders it (spec
// §4.4.5: "cache keyed by MD5(url)").
const webCaptureTTL = 24 * time.Hour

// WebCaptureCache maps MD5(url) to the storage path of that URL's
// already-captured translated PDF, sharing ListCache's Redis
// connection idiom against its own logical key namespace.
type WebCaptureCache struct {
	rdb *redis.Client
}

// NewWebCaptureCache connects to the Redis instance described by qcfg.
func NewWebCaptureCache(qcfg config.QueueConfig) (*WebCaptureCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     qcfg.Addr,
		Password: qcfg.Password,
		DB:       qcfg.DB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &WebCaptureCache{rdb: rdb}, nil
}

// Key hashes url to the cache's lookup key (exported so callers can
// log/compare it without round-tripping through Get/Set).
func Key(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *WebCaptureCache) redisKey(url string) string {
	return "webcapture:translated:" + Key(url)
}

// Get returns the cached translated-PDF storage path for url, or
// ok=false on a miss.
func (c *WebCaptureCache) Get(ctx context.Context, url string) (string, bool) {
	path, err := c.rdb.Get(ctx, c.redisKey(url)).Result()
	if err != nil {
		return "", false
	}
	return path, true
}

// Set records path as url's cached translated-PDF location.
func (c *WebCaptureCache) Set(ctx context.Context, url, path string) {
	c.rdb.Set(ctx, c.redisKey(url), path, webCaptureTTL)
}

// Close releases the underlying Redis connection.
func (c *WebCaptureCache) Close() error {
	return c.rdb.Close()
}
