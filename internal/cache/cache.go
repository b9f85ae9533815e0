// Package cache stores serialized recommendation results.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss indicates a cache miss.
var ErrMiss = errors.New("cache miss")

// Cache is a TTL byte store.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}
