package entity

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

func testListing() *Listing {
	return &Listing{
		ID:           uuid.New(),
		Owner:        uuid.New(),
		Title:        "Логотип",
		Price:        100_000,
		DeliveryTime: 72 * time.Hour,
		MaxRevisions: 1,
		Active:       true,
	}
}

func deliveredOrder(t *testing.T) *Order {
	t.Helper()
	o, err := NewOrder(testListing(), uuid.New(), "нужен логотип", 0, testNow)
	require.NoError(t, err)
	require.NoError(t, o.Accept(testNow))
	require.NoError(t, o.Deliver("готово", []string{"files/logo.png"}, testNow))
	return o
}

func TestNewOrder_Validation(t *testing.T) {
	l := testListing()

	_, err := NewOrder(l, l.Owner, "", 0, testNow)
	assert.True(t, errors.Is(err, apperror.ErrSelfPurchase))

	_, err = NewOrder(l, uuid.New(), strings.Repeat("я", 1001), 0, testNow)
	assert.True(t, apperror.IsValidation(err))

	l.Active = false
	_, err = NewOrder(l, uuid.New(), "", 0, testNow)
	assert.True(t, errors.Is(err, apperror.ErrListingInactive))
}

func TestNewOrder_CopiesListingTerms(t *testing.T) {
	l := testListing()
	o, err := NewOrder(l, uuid.New(), "", 0, testNow)
	require.NoError(t, err)

	assert.Equal(t, valueobject.OrderStatusCreated, o.Status)
	assert.Equal(t, l.Price, o.Amount)
	assert.Equal(t, l.Owner, o.Seller)
	assert.Equal(t, testNow.Add(72*time.Hour), o.Deadline)
	assert.Equal(t, 1, o.MaxRevisions)
}

func TestOrder_RevisionLimit(t *testing.T) {
	o := deliveredOrder(t)

	require.NoError(t, o.RequestRevision(testNow))
	assert.Equal(t, valueobject.OrderStatusInProgress, o.Status)
	assert.Equal(t, 1, o.RevisionCount)

	require.NoError(t, o.Deliver("исправлено", nil, testNow))
	err := o.RequestRevision(testNow)
	assert.True(t, errors.Is(err, apperror.ErrRevisionLimitExceeded))
	assert.Equal(t, valueobject.OrderStatusDelivered, o.Status)
	assert.Equal(t, 1, o.RevisionCount)
}

func TestOrder_CompleteRequiresDelivered(t *testing.T) {
	o, err := NewOrder(testListing(), uuid.New(), "", 0, testNow)
	require.NoError(t, err)

	err = o.Complete(5, "", testNow)
	assert.True(t, errors.Is(err, apperror.ErrInvalidOrderStatus))
	assert.Nil(t, o.CompletedAt)
}

func TestOrder_CompleteRequiresAllMilestones(t *testing.T) {
	o := deliveredOrder(t)
	o.MilestoneCount = 2
	o.CompletedMilestones = 1

	err := o.Complete(5, "спасибо", testNow)
	assert.True(t, errors.Is(err, apperror.ErrAllMilestonesMustBeCompleted))

	require.NoError(t, o.RecordMilestoneApproved(testNow))
	require.NoError(t, o.Complete(5, "спасибо", testNow))
	assert.Equal(t, valueobject.OrderStatusCompleted, o.Status)
	assert.Nil(t, o.CancelledAt)
}

func TestOrder_CompleteValidatesRating(t *testing.T) {
	o := deliveredOrder(t)
	assert.True(t, apperror.IsValidation(o.Complete(6, "", testNow)))
	assert.True(t, apperror.IsValidation(o.Complete(0, "", testNow)))
	assert.Equal(t, valueobject.OrderStatusDelivered, o.Status)
}

func TestOrder_CancelPolicy(t *testing.T) {
	l := testListing()
	buyer := uuid.New()

	o, err := NewOrder(l, buyer, "", 0, testNow)
	require.NoError(t, err)
	require.NoError(t, o.Accept(testNow))
	require.NoError(t, o.Start(testNow))

	err = o.Cancel(buyer, testNow.Add(time.Hour))
	assert.True(t, errors.Is(err, apperror.ErrDeadlineNotPassed))

	err = o.Cancel(uuid.New(), testNow)
	assert.True(t, errors.Is(err, apperror.ErrNotOrderParty))

	require.NoError(t, o.Cancel(buyer, o.Deadline.Add(time.Second)))
	assert.Equal(t, valueobject.OrderStatusCancelled, o.Status)
	assert.NotNil(t, o.CancelledAt)

	err = o.Cancel(buyer, o.Deadline.Add(time.Second))
	assert.True(t, errors.Is(err, apperror.ErrInvalidOrderStatus))
}

func TestOrder_SellerMayCancelInProgress(t *testing.T) {
	l := testListing()
	o, err := NewOrder(l, uuid.New(), "", 0, testNow)
	require.NoError(t, err)
	require.NoError(t, o.Accept(testNow))
	require.NoError(t, o.Start(testNow))

	require.NoError(t, o.Cancel(l.Owner, testNow))
}

func TestOrder_DisputeWindow(t *testing.T) {
	period := 7 * 24 * time.Hour

	o := deliveredOrder(t)
	err := o.RaiseDispute(period, testNow.Add(period+time.Second))
	assert.True(t, errors.Is(err, apperror.ErrDisputePeriodExpired))
	assert.Equal(t, valueobject.OrderStatusDelivered, o.Status)

	require.NoError(t, o.RaiseDispute(period, testNow.Add(period)))
	assert.Equal(t, valueobject.OrderStatusDisputed, o.Status)
	require.NotNil(t, o.PreDisputeStatus)
	assert.Equal(t, valueobject.OrderStatusDelivered, *o.PreDisputeStatus)
}

func TestOrder_DismissRestoresPreviousStatus(t *testing.T) {
	o := deliveredOrder(t)
	require.NoError(t, o.RaiseDispute(time.Hour, testNow))

	require.NoError(t, o.RestoreAfterDismissal(testNow))
	assert.Equal(t, valueobject.OrderStatusDelivered, o.Status)
	assert.Nil(t, o.PreDisputeStatus)
}

func TestOrder_ResolveIsTerminal(t *testing.T) {
	o := deliveredOrder(t)
	require.NoError(t, o.RaiseDispute(time.Hour, testNow))
	require.NoError(t, o.Resolve(testNow))
	assert.Equal(t, valueobject.OrderStatusResolved, o.Status)
	assert.True(t, o.Status.IsTerminal())
	assert.Nil(t, o.PreDisputeStatus)
	require.NotNil(t, o.ResolvedAt)

	assert.ErrorIs(t, o.Resolve(testNow), apperror.ErrInvalidOrderStatus)
}

func TestOrder_LeaveReviewOncePerParty(t *testing.T) {
	o := deliveredOrder(t)
	require.NoError(t, o.Complete(5, "отлично", testNow))

	_, err := o.LeaveReview(o.Buyer, 4, "ещё раз", testNow)
	assert.True(t, errors.Is(err, apperror.ErrReviewAlreadyExists))

	reviewee, err := o.LeaveReview(o.Seller, 5, "приятный заказчик", testNow)
	require.NoError(t, err)
	assert.Equal(t, o.Buyer, reviewee)
	require.NotNil(t, o.SellerRating)
	assert.Equal(t, 5, *o.SellerRating)
}

func TestOrder_UndeliveredReleaseAt(t *testing.T) {
	o := deliveredOrder(t)
	period := 72 * time.Hour

	assert.Equal(t, o.Deadline.Add(period), o.UndeliveredReleaseAt(period, o.Deadline.Add(-time.Hour)))

	late := o.Deadline.Add(5 * time.Hour)
	assert.Equal(t, late.Add(period), o.UndeliveredReleaseAt(period, late))
}
