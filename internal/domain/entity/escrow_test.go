package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fundedEscrow(t *testing.T, amount valueobject.Amount, rate valueobject.BasisPoints) *Escrow {
	t.Helper()
	order := &Order{ID: uuid.New(), Buyer: uuid.New(), Seller: uuid.New(), Amount: amount}
	e := NewEscrow(order, testNow)
	require.NoError(t, e.Fund(FundTerms{
		Amount:             amount,
		FeeRate:            rate,
		AutoReleaseEnabled: true,
		DisputeDeadline:    testNow.Add(7 * 24 * time.Hour),
	}, testNow))
	return e
}

func TestEscrow_FundOnce(t *testing.T) {
	e := fundedEscrow(t, 1_000, 250)
	err := e.Fund(FundTerms{Amount: 10, FeeRate: 250}, testNow)
	assert.True(t, errors.Is(err, apperror.ErrEscrowAlreadyFunded))
	assert.Equal(t, valueobject.Amount(1_000), e.Amount)
}

func TestEscrow_FundZero(t *testing.T) {
	e := NewEscrow(&Order{ID: uuid.New()}, testNow)
	err := e.Fund(FundTerms{Amount: 0, FeeRate: 250}, testNow)
	assert.True(t, apperror.IsValidation(err))
	assert.Nil(t, e.FundedAt)
}

func TestEscrow_ReleaseUsesSnapshotRate(t *testing.T) {
	e := fundedEscrow(t, 1_000_000, 250)

	got, err := e.Release(testNow)
	require.NoError(t, err)
	assert.Equal(t, valueobject.Amount(25_000), got.Fee)
	assert.Equal(t, valueobject.Amount(975_000), got.Net)
	assert.Equal(t, valueobject.Amount(0), e.Amount)
	assert.Equal(t, valueobject.EscrowStatusReleased, e.Status)
	assert.NotNil(t, e.ReleasedAt)
	assert.Nil(t, e.RefundedAt)
}

func TestEscrow_DisbursementsSucceedAtMostOnce(t *testing.T) {
	ops := map[string]func(e *Escrow) error{
		"release": func(e *Escrow) error { _, err := e.Release(testNow); return err },
		"refund":  func(e *Escrow) error { _, err := e.Refund(testNow); return err },
		"split":   func(e *Escrow) error { _, err := e.SplitRelease(100, 100, testNow); return err },
	}

	for firstName, first := range ops {
		for secondName, second := range ops {
			t.Run(firstName+"_then_"+secondName, func(t *testing.T) {
				e := fundedEscrow(t, 1_000, 250)
				require.NoError(t, first(e))

				before := *e
				err := second(e)
				assert.True(t, errors.Is(err, apperror.ErrEscrowAlreadyReleased))
				assert.Equal(t, before.Amount, e.Amount)
				assert.Equal(t, before.Status, e.Status)
				assert.False(t, e.ReleasedAt != nil && e.RefundedAt != nil)
			})
		}
	}
}

func TestEscrow_SplitRelease(t *testing.T) {
	e := fundedEscrow(t, 500_000, 250)
	require.NoError(t, e.Lock(testNow))

	forfeited, err := e.SplitRelease(200_000, 290_000, testNow)
	require.NoError(t, err)
	assert.Equal(t, valueobject.Amount(10_000), forfeited)
	assert.Equal(t, valueobject.Amount(200_000), e.BuyerRefunded)
	assert.Equal(t, valueobject.Amount(290_000), e.SellerNet)
	assert.Equal(t, valueobject.Amount(10_000), e.PlatformFee)
	assert.Equal(t, valueobject.Amount(0), e.Amount)
	assert.False(t, e.Locked)
	assert.NotNil(t, e.ReleasedAt)
	assert.Nil(t, e.RefundedAt)
}

func TestEscrow_SplitReleaseExceedsAmount(t *testing.T) {
	e := fundedEscrow(t, 500_000, 250)

	_, err := e.SplitRelease(300_000, 300_000, testNow)
	assert.True(t, errors.Is(err, apperror.ErrSplitExceedsEscrow))
	assert.Equal(t, valueobject.Amount(500_000), e.Amount)

	_, err = e.SplitRelease(valueobject.MaxAmount, 1, testNow)
	assert.True(t, errors.Is(err, apperror.ErrArithmeticOverflow))
}

func TestEscrow_FullRefundSplitSetsRefundedAt(t *testing.T) {
	e := fundedEscrow(t, 1_000, 250)
	_, err := e.SplitRelease(1_000, 0, testNow)
	require.NoError(t, err)
	assert.NotNil(t, e.RefundedAt)
	assert.Nil(t, e.ReleasedAt)
}

func TestEscrow_LockedBlocksReleaseAndRefund(t *testing.T) {
	e := fundedEscrow(t, 1_000, 250)
	require.NoError(t, e.Lock(testNow))

	_, err := e.Release(testNow)
	assert.True(t, errors.Is(err, apperror.ErrEscrowLocked))
	_, err = e.Refund(testNow)
	assert.True(t, errors.Is(err, apperror.ErrEscrowLocked))
	_, err = e.ReleasePartial(10, testNow)
	assert.True(t, errors.Is(err, apperror.ErrEscrowLocked))
	assert.False(t, e.CanAutoRelease(testNow.Add(30*24*time.Hour)))
}

func TestEscrow_ReleasePartialRunningTotal(t *testing.T) {
	e := fundedEscrow(t, 1_000, 1_000)

	first, err := e.ReleasePartial(400, testNow)
	require.NoError(t, err)
	assert.Equal(t, valueobject.Amount(40), first.Fee)
	assert.Equal(t, valueobject.Amount(600), e.Amount)
	assert.Equal(t, valueobject.Amount(400), e.ReleasedAmount)

	_, err = e.ReleasePartial(700, testNow)
	assert.True(t, errors.Is(err, apperror.ErrMilestoneBudgetExceeded))
	assert.Equal(t, valueobject.Amount(600), e.Amount)

	_, err = e.ReleasePartial(600, testNow)
	require.NoError(t, err)
	assert.Equal(t, valueobject.Amount(0), e.Amount)
	assert.Equal(t, valueobject.EscrowStatusFunded, e.Status)

	// финальная выплата остатка после этапов
	final, err := e.Release(testNow)
	require.NoError(t, err)
	assert.Equal(t, valueobject.Amount(0), final.Gross)
	assert.Equal(t, valueobject.Amount(100), e.PlatformFee)
	assert.Equal(t, valueobject.Amount(900), e.SellerNet)
}

func TestEscrow_CanAutoRelease(t *testing.T) {
	e := fundedEscrow(t, 1_000, 250)

	assert.False(t, e.CanAutoRelease(e.DisputeDeadline))
	assert.True(t, e.CanAutoRelease(e.DisputeDeadline.Add(time.Second)))

	e.AutoReleaseEnabled = false
	assert.False(t, e.CanAutoRelease(e.DisputeDeadline.Add(time.Second)))

	e.AutoReleaseEnabled = true
	_, err := e.Release(testNow)
	require.NoError(t, err)
	assert.False(t, e.CanAutoRelease(e.DisputeDeadline.Add(time.Second)))
}
