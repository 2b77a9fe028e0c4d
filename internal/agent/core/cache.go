package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes generated content. Caching is strictly an optimization:
// Store never reports failure and Lookup treats any problem as a miss.
type Cache interface {
	Lookup(ctx context.Context, key string) (string, bool)
	Store(ctx context.Context, key, text string)
}

// CacheKey builds a deterministic digest of the normalized request parts.
// Collisions are treated as hits; there is no collision detection.
func CacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FileCache stores one file per entry under a namespace directory, keyed by
// the hex digest. Expiry is lazy: the entry age is the file mtime, checked
// on read; nothing is ever evicted.
type FileCache struct {
	dir    string
	ext    string
	ttl    time.Duration
	logger *log.Logger
}

// NewFileCache creates a file cache rooted at dir with the given TTL.
// Entries are named <key>.txt; use WithExt to change the suffix.
func NewFileCache(dir string, ttl time.Duration, logger *log.Logger) *FileCache {
	if err := os.MkdirAll(dir, 0o755); err != nil && logger != nil {
		logger.Printf("cache dir %s unavailable: %v", dir, err)
	}
	return &FileCache{dir: dir, ext: ".txt", ttl: ttl, logger: logger}
}

// WithExt sets the entry file suffix, e.g. ".md" for Markdown content.
func (c *FileCache) WithExt(ext string) *FileCache {
	c.ext = ext
	return c
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key+c.ext)
}

// Lookup returns the cached text when the entry exists and is younger than
// the TTL. Expired entries are ignored, not deleted.
func (c *FileCache) Lookup(_ context.Context, key string) (string, bool) {
	p := c.path(key)
	info, err := os.Stat(p)
	if err != nil {
		return "", false
	}
	if time.Since(info.ModTime()) >= c.ttl {
		return "", false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Store persists the text, fire-and-forget. I/O failures are logged and
// swallowed; a cache miss next time is the only consequence.
func (c *FileCache) Store(_ context.Context, key, text string) {
	if err := os.WriteFile(c.path(key), []byte(text), 0o644); err != nil && c.logger != nil {
		c.logger.Printf("cache store failed for %s: %v", key, err)
	}
}

// RedisCache stores entries in Redis with a server-side TTL. The namespace
// keeps per-use-case entries apart within one database.
type RedisCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
	logger    *log.Logger
}

// NewRedisCache wraps an existing Redis client for one namespace.
func NewRedisCache(client *redis.Client, namespace string, ttl time.Duration, logger *log.Logger) *RedisCache {
	return &RedisCache{client: client, namespace: namespace, ttl: ttl, logger: logger}
}

func (c *RedisCache) key(key string) string {
	return "deepresearch:" + c.namespace + ":" + key
}

func (c *RedisCache) Lookup(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *RedisCache) Store(ctx context.Context, key, text string) {
	if err := c.client.Set(ctx, c.key(key), text, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Printf("cache store failed for %s: %v", key, err)
	}
}

// NopCache disables caching entirely (the --no-cache path).
type NopCache struct{}

func (NopCache) Lookup(context.Context, string) (string, bool) { return "", false }
func (NopCache) Store(context.Context, string, string)         {}
