package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
)

func TestCacheService_TTL(t *testing.T) {
	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cs := NewCacheService(clk)
	key := ListingCacheKey(uuid.New())

	cs.Set(key, "v1", time.Minute)
	v, ok := cs.Get(key)
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	clk.Advance(time.Minute)
	_, ok = cs.Get(key)
	assert.False(t, ok)

	cs.evictExpired()
	assert.Zero(t, cs.Len())
}

func TestCacheService_GetOrSet(t *testing.T) {
	cs := NewCacheService(clock.NewFixed(time.Now()))
	ctx := context.Background()
	key := ProfileCacheKey(uuid.New())
	calls := 0

	load := func(context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	v, err := cs.GetOrSet(ctx, key, time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = cs.GetOrSet(ctx, key, time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, calls)

	_, err = cs.GetOrSet(ctx, "profile:broken", time.Minute, func(context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	_, ok := cs.Get("profile:broken")
	assert.False(t, ok)
}

func TestCacheService_InvalidateByPrefix(t *testing.T) {
	cs := NewCacheService(nil)
	id := uuid.New()
	cs.Set(ListingCacheKey(id), 1, time.Minute)
	cs.Set(ListingCacheKey(uuid.New()), 2, time.Minute)
	cs.Set(ProfileCacheKey(id), 3, time.Minute)

	cs.InvalidateByPrefix("listing:")
	assert.Equal(t, 1, cs.Len())

	cs.Delete(ProfileCacheKey(id))
	assert.Zero(t, cs.Len())
}
