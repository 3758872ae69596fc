package handler

import (
	"context"
	"time"
)

// Время жизни публичных ответов в кэше чтения.
const (
	listingCacheTTL = time.Minute
	profileCacheTTL = 30 * time.Second
)

// ReadCache кэш публичных чтений.
type ReadCache interface {
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) (interface{}, error)) (interface{}, error)
	Delete(key string)
}
