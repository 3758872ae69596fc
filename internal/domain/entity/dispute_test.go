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

func TestNewDispute_Validation(t *testing.T) {
	o := deliveredOrder(t)

	_, err := NewDispute(o, uuid.New(), "работа не сдана вовремя", "", nil, testNow)
	assert.True(t, errors.Is(err, apperror.ErrNotOrderParty))

	_, err = NewDispute(o, o.Buyer, "коротко", "", nil, testNow)
	assert.True(t, apperror.IsValidation(err))

	_, err = NewDispute(o, o.Buyer, "работа не соответствует ТЗ", "", []string{"a", "b", "c", "d", "e", "f"}, testNow)
	assert.True(t, apperror.IsValidation(err))

	d, err := NewDispute(o, o.Seller, "покупатель не выходит на связь", "", nil, testNow)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusOpen, d.Status)
}

func TestDispute_ResolveOnce(t *testing.T) {
	o := deliveredOrder(t)
	d, err := NewDispute(o, o.Buyer, "работа не соответствует ТЗ", "", nil, testNow)
	require.NoError(t, err)

	arbiter := uuid.New()
	require.NoError(t, d.AssignArbiter(arbiter, testNow))
	assert.Equal(t, valueobject.DisputeStatusUnderReview, d.Status)

	outcome := DisputeOutcome{RefundPercentage: 40, BuyerRefund: 40, SellerPayout: 60}
	require.NoError(t, d.Resolve("частичный возврат", outcome, testNow.Add(time.Hour)))
	assert.Equal(t, valueobject.DisputeStatusResolved, d.Status)

	err = d.Resolve("ещё раз", outcome, testNow)
	assert.True(t, errors.Is(err, apperror.ErrInvalidDisputeStatus))
	assert.True(t, errors.Is(d.CheckResolvable(), apperror.ErrInvalidDisputeStatus))
}

func TestDispute_CanBeDecidedBy(t *testing.T) {
	d := &Dispute{Status: valueobject.DisputeStatusOpen}
	someone := uuid.New()

	assert.True(t, d.CanBeDecidedBy(someone, valueobject.RoleArbiter))
	assert.False(t, d.CanBeDecidedBy(someone, valueobject.RoleBuyer))

	assigned := uuid.New()
	d.Arbiter = &assigned
	assert.False(t, d.CanBeDecidedBy(someone, valueobject.RoleArbiter))
	assert.True(t, d.CanBeDecidedBy(assigned, valueobject.RoleArbiter))
	assert.True(t, d.CanBeDecidedBy(someone, valueobject.RoleAdmin))
}

func TestNewMilestones_SumMustMatchOrder(t *testing.T) {
	o := &Order{ID: uuid.New(), Amount: 1_000}
	due := testNow.Add(24 * time.Hour)

	_, err := NewMilestones(o, []MilestonePlan{
		{Title: "Эскизы", Amount: 400, DueDate: due},
		{Title: "Финал", Amount: 500, DueDate: due},
	}, 10, testNow)
	assert.True(t, apperror.IsValidation(err))

	ms, err := NewMilestones(o, []MilestonePlan{
		{Title: "Эскизы", Amount: 400, DueDate: due},
		{Title: "Финал", Amount: 600, DueDate: due},
	}, 10, testNow)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 2, ms[1].Position)

	_, err = NewMilestones(o, []MilestonePlan{
		{Title: "A", Amount: valueobject.MaxAmount, DueDate: due},
		{Title: "B", Amount: 1, DueDate: due},
	}, 10, testNow)
	assert.True(t, errors.Is(err, apperror.ErrArithmeticOverflow))
}

func TestMilestone_Lifecycle(t *testing.T) {
	m := &Milestone{Status: valueobject.MilestoneStatusPending}

	assert.True(t, errors.Is(m.Submit("files/a.zip", testNow), apperror.ErrInvalidMilestoneStatus))
	require.NoError(t, m.Start(testNow))
	require.NoError(t, m.Submit("files/a.zip", testNow))
	require.NoError(t, m.Reject("не тот формат", testNow))
	require.NoError(t, m.Start(testNow))
	require.NoError(t, m.Submit("files/b.zip", testNow))
	assert.Nil(t, m.RejectionReason)
	require.NoError(t, m.Approve(testNow))
	assert.True(t, errors.Is(m.Approve(testNow), apperror.ErrInvalidMilestoneStatus))
}
