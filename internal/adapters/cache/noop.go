package cache

import (
	"context"
	"time"

	"reqflow/internal/ports"
)

// NoopCache is a ports.Cache that stores nothing. Every Get is a miss and
// every write succeeds silently. Used when caching is disabled.
type NoopCache struct{}

// Verify interface compliance at compile time
var _ ports.Cache = NoopCache{}

func (NoopCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, ports.ErrCacheMiss
}

func (NoopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (NoopCache) Delete(ctx context.Context, key string) error { return nil }

func (NoopCache) Close() error { return nil }
