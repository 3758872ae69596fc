package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
)

// CacheService кэш в памяти с TTL для публичных чтений: объявлений и
// репутации. Данные денежных операций через него не проходят.
type CacheService struct {
	mu    sync.RWMutex
	cache map[string]*cacheEntry
	clock clock.Clock
}

type cacheEntry struct {
	data      interface{}
	expiresAt time.Time
}

func NewCacheService(clk clock.Clock) *CacheService {
	if clk == nil {
		clk = clock.System()
	}
	return &CacheService{
		cache: make(map[string]*cacheEntry),
		clock: clk,
	}
}

func (cs *CacheService) Get(key string) (interface{}, bool) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	entry, exists := cs.cache[key]
	if !exists || !cs.clock.Now().Before(entry.expiresAt) {
		// просроченные записи удаляет Run
		return nil, false
	}
	return entry.data, true
}

func (cs *CacheService) Set(key string, value interface{}, ttl time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.cache[key] = &cacheEntry{
		data:      value,
		expiresAt: cs.clock.Now().Add(ttl),
	}
}

func (cs *CacheService) Delete(key string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	delete(cs.cache, key)
}

// InvalidateByPrefix удаляет все ключи с префиксом.
func (cs *CacheService) InvalidateByPrefix(prefix string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key := range cs.cache {
		if strings.HasPrefix(key, prefix) {
			delete(cs.cache, key)
		}
	}
}

func (cs *CacheService) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.cache)
}

// Run периодически чистит просроченные записи до отмены ctx.
func (cs *CacheService) Run(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			cs.evictExpired()
		}
	}
}

func (cs *CacheService) evictExpired() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := cs.clock.Now()
	for key, entry := range cs.cache {
		if !now.Before(entry.expiresAt) {
			delete(cs.cache, key)
		}
	}
}

// Ключи кэша
func ListingCacheKey(listingID uuid.UUID) string {
	return "listing:" + listingID.String()
}

func ProfileCacheKey(userID uuid.UUID) string {
	return "profile:" + userID.String()
}

// GetOrSet возвращает значение из кэша или вычисляет и сохраняет его.
// Ошибки не кэшируются.
func (cs *CacheService) GetOrSet(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fn func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	if value, found := cs.Get(key); found {
		return value, nil
	}

	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	cs.Set(key, value, ttl)
	return value, nil
}
