package ports

import (
	"context"
	"time"
)

// Cache holds small key-value state for adapters, such as transport cursors.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
