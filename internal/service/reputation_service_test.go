package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/infrastructure/persistence"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
)

func newReputation() *ReputationService {
	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewReputationService(persistence.NewMemoryLedger(), clk, logger.Nop())
}

func TestReputationService_Accumulates(t *testing.T) {
	s := newReputation()
	ctx := context.Background()
	seller := uuid.New()

	five, three := 5, 3
	require.NoError(t, s.RecordCompletion(ctx, seller, &five))
	require.NoError(t, s.RecordCompletion(ctx, seller, &three))
	require.NoError(t, s.RecordCompletion(ctx, seller, nil))
	require.NoError(t, s.RecordEarnings(ctx, seller, 975_000))

	p, err := s.Profile(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), p.CompletedOrders)
	assert.Equal(t, uint64(2), p.TotalReviews)
	assert.Equal(t, uint32(400), p.AverageRating)
	assert.Equal(t, valueobject.Amount(975_000), p.TotalEarnings)
}

func TestReputationService_EmptyProfile(t *testing.T) {
	s := newReputation()
	p, err := s.Profile(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, p.CompletedOrders)
}

func TestReputationService_InvalidRatingWritesNothing(t *testing.T) {
	s := newReputation()
	ctx := context.Background()
	user := uuid.New()

	assert.Error(t, s.RecordRating(ctx, user, 6))
	p, err := s.Profile(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, p.TotalReviews)
}

func TestReputationService_Concurrent(t *testing.T) {
	s := newReputation()
	ctx := context.Background()
	user := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.RecordEarnings(ctx, user, 10))
		}()
	}
	wg.Wait()

	p, err := s.Profile(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, valueobject.Amount(200), p.TotalEarnings)
}
