package cache

import (
	"context"
	"time"
)

// noopCache stores nothing; every Get misses.
type noopCache struct{}

var _ Cache = noopCache{}

// NewNoop returns a cache that never holds anything.
func NewNoop() Cache {
	return noopCache{}
}

func (noopCache) Get(ctx context.Context, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNotFound
}

func (noopCache) SetWithTTL(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	return ctx.Err()
}

func (noopCache) Delete(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (noopCache) Close() error {
	return nil
}
