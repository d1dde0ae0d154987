// Package cache provides exact-match translation reuse.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZaguanLabs/lingoflow"
)

// TranslationCache is an alias to the main package interface.
type TranslationCache = lingoflow.TranslationCache

// Enumerable is a cache whose live entries can be listed for export.
type Enumerable interface {
	TranslationCache
	Entries() (map[string]string, error)
}

// Config selects a cache backend.
type Config struct {
	URL       string        // "", "memory" or "redis://..."
	Size      int           // entries, memory backend only
	TTL       time.Duration // 0 = no expiration
	KeyPrefix string        // redis backend only
}

// Open builds the cache described by cfg.
func Open(ctx context.Context, cfg Config) (Enumerable, error) {
	switch {
	case cfg.URL == "" || cfg.URL == "memory":
		return NewLRUCache(cfg.Size, cfg.TTL), nil
	case strings.HasPrefix(cfg.URL, "redis://") || strings.HasPrefix(cfg.URL, "rediss://"):
		return NewRedisCache(ctx, RedisConfig{URL: cfg.URL, TTL: cfg.TTL, KeyPrefix: cfg.KeyPrefix})
	default:
		return nil, &lingoflow.CacheError{Message: fmt.Sprintf("unsupported cache URL %q", cfg.URL)}
	}
}
