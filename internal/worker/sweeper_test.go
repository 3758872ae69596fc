package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
	"github.com/ignatzorin/escrow-market/internal/usecase/order"
	"github.com/ignatzorin/escrow-market/internal/usecase/usecasetest"
)

type listerMock struct{ mock.Mock }

func (m *listerMock) ListAutoReleaseCandidates(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, now, limit)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

type releaserMock struct{ mock.Mock }

func (m *releaserMock) Execute(ctx context.Context, orderID uuid.UUID) (*order.AutoReleaseOutput, error) {
	args := m.Called(ctx, orderID)
	out, _ := args.Get(0).(*order.AutoReleaseOutput)
	return out, args.Error(1)
}

func TestSweeper_RunOnceContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(usecasetest.Start)
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	lister := &listerMock{}
	lister.On("ListAutoReleaseCandidates", ctx, usecasetest.Start, 50).Return([]uuid.UUID{a, b, c}, nil)

	releaser := &releaserMock{}
	releaser.On("Execute", ctx, a).Return(&order.AutoReleaseOutput{Released: true}, nil)
	releaser.On("Execute", ctx, b).Return(nil, apperror.ErrEscrowLocked)
	releaser.On("Execute", ctx, c).Return(&order.AutoReleaseOutput{Released: false}, nil)

	res, err := NewSweeper(lister, releaser, clk, time.Minute, 50, logger.Nop()).RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, SweepResult{Candidates: 3, Released: 1, Failed: 1}, res)
	lister.AssertExpectations(t)
	releaser.AssertExpectations(t)
}

func TestSweeper_ListFailure(t *testing.T) {
	ctx := context.Background()
	lister := &listerMock{}
	lister.On("ListAutoReleaseCandidates", ctx, mock.Anything, 100).Return(nil, errors.New("ledger down"))
	releaser := &releaserMock{}

	_, err := NewSweeper(lister, releaser, clock.NewFixed(usecasetest.Start), time.Minute, 0, logger.Nop()).RunOnce(ctx)
	require.Error(t, err)
	releaser.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestSweeper_ReleasesDueEscrows(t *testing.T) {
	const price valueobject.Amount = 1_000_000
	ctx := context.Background()
	f := usecasetest.New(t, price, nil)

	created, err := order.NewCreateOrderUseCase(f.Deps).Execute(ctx, order.CreateOrderInput{
		BuyerID:      f.Buyer,
		ListingID:    f.Listing.ID,
		Requirements: "иконки",
	})
	require.NoError(t, err)
	orderID := created.Order.ID

	_, err = order.NewAcceptOrderUseCase(f.Deps).Execute(ctx, orderID, f.Seller)
	require.NoError(t, err)
	_, err = order.NewDeliverOrderUseCase(f.Deps).Execute(ctx, order.DeliverOrderInput{
		OrderID:  orderID,
		SellerID: f.Seller,
		Notes:    "готово",
	})
	require.NoError(t, err)

	sweeper := NewSweeper(f.Ledger, order.NewAutoReleaseUseCase(f.Deps), f.Clock, time.Minute, 10, logger.Nop())

	res, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)

	f.Clock.Advance(usecasetest.DisputePeriod + time.Second)
	res, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Candidates: 1, Released: 1}, res)

	assert.Equal(t, valueobject.OrderStatusCompleted, f.Order(t, orderID).Status)
	assert.Equal(t, valueobject.Amount(975_000), f.Balance(t, f.Seller))
	assert.Equal(t, valueobject.Amount(25_000), f.Balance(t, f.Treasury))

	res, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Candidates)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lister := &listerMock{}
	lister.On("ListAutoReleaseCandidates", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{}, nil)

	done := make(chan error, 1)
	go func() {
		done <- NewSweeper(lister, &releaserMock{}, clock.System(), 10*time.Millisecond, 10, logger.Nop()).Run(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper не остановился")
	}
}
