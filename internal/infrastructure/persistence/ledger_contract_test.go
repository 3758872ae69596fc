package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// runLedgerContract общий набор проверок для всех реализаций леджера.
func runLedgerContract(t *testing.T, newLedger func(t *testing.T) repository.Ledger) {
	t.Run("order roundtrip", func(t *testing.T) { testOrderRoundtrip(t, newLedger(t)) })
	t.Run("get returns detached copy", func(t *testing.T) { testDetachedCopy(t, newLedger(t)) })
	t.Run("stale version is rejected", func(t *testing.T) { testVersionConflict(t, newLedger(t)) })
	t.Run("failed tx leaves no trace", func(t *testing.T) { testRollback(t, newLedger(t)) })
	t.Run("one dispute per order", func(t *testing.T) { testDisputeUniqueness(t, newLedger(t)) })
	t.Run("one review per party", func(t *testing.T) { testReviewUniqueness(t, newLedger(t)) })
	t.Run("custody transfers", func(t *testing.T) { testCustody(t, newLedger(t)) })
	t.Run("milestones ordered by position", func(t *testing.T) { testMilestones(t, newLedger(t)) })
	t.Run("auto release candidates", func(t *testing.T) { testAutoReleaseCandidates(t, newLedger(t)) })
	t.Run("concurrent completes", func(t *testing.T) { testConcurrentUpdates(t, newLedger(t)) })
}

func seedOrder(t *testing.T, ledger repository.Ledger) *entity.Order {
	t.Helper()
	ctx := context.Background()

	listing, err := entity.NewListing(uuid.New(), entity.ListingTerms{
		Title:        "Логотип",
		Price:        1_000_000,
		DeliveryTime: 72 * time.Hour,
		MaxRevisions: 2,
	}, entity.ListingLimits{MinPrice: 1, MaxRevisions: 5}, testNow)
	require.NoError(t, err)

	order, err := entity.NewOrder(listing, uuid.New(), "нужен логотип", 0, testNow)
	require.NoError(t, err)

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		if err := tx.InsertListing(ctx, listing); err != nil {
			return err
		}
		return tx.InsertOrder(ctx, order)
	}))
	return order
}

func getOrder(t *testing.T, ledger repository.Ledger, id uuid.UUID) *entity.Order {
	t.Helper()
	var out *entity.Order
	require.NoError(t, ledger.WithinTx(context.Background(), func(tx repository.LedgerTx) error {
		var err error
		out, err = tx.GetOrder(context.Background(), id)
		return err
	}))
	return out
}

func testOrderRoundtrip(t *testing.T, ledger repository.Ledger) {
	order := seedOrder(t, ledger)

	got := getOrder(t, ledger, order.ID)
	assert.Equal(t, order.Buyer, got.Buyer)
	assert.Equal(t, order.Seller, got.Seller)
	assert.Equal(t, valueobject.Amount(1_000_000), got.Amount)
	assert.Equal(t, valueobject.OrderStatusCreated, got.Status)
	assert.True(t, order.Deadline.Equal(got.Deadline))
	assert.Equal(t, int64(1), got.Version)

	err := ledger.WithinTx(context.Background(), func(tx repository.LedgerTx) error {
		_, err := tx.GetOrder(context.Background(), uuid.New())
		return err
	})
	assert.True(t, errors.Is(err, apperror.ErrOrderNotFound))
}

func testDetachedCopy(t *testing.T, ledger repository.Ledger) {
	ctx := context.Background()
	order := seedOrder(t, ledger)

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := tx.GetOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		// изменение без Update не должно попасть в хранилище
		return o.Accept(testNow)
	}))

	assert.Equal(t, valueobject.OrderStatusCreated, getOrder(t, ledger, order.ID).Status)
}

func testVersionConflict(t *testing.T, ledger repository.Ledger) {
	ctx := context.Background()
	order := seedOrder(t, ledger)

	stale := getOrder(t, ledger, order.ID)
	fresh := getOrder(t, ledger, order.ID)

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		require.NoError(t, fresh.Accept(testNow))
		return tx.UpdateOrder(ctx, fresh)
	}))
	assert.Equal(t, int64(2), fresh.Version)

	err := ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		require.NoError(t, stale.Cancel(stale.Buyer, testNow))
		return tx.UpdateOrder(ctx, stale)
	})
	assert.True(t, errors.Is(err, apperror.ErrVersionConflict))
	assert.Equal(t, valueobject.OrderStatusAccepted, getOrder(t, ledger, order.ID).Status)
}

func testRollback(t *testing.T, ledger repository.Ledger) {
	ctx := context.Background()
	order := seedOrder(t, ledger)
	boom := errors.New("boom")

	err := ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := tx.GetOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := o.Accept(testNow); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		if err := tx.Credit(ctx, o.Buyer, 500); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, valueobject.OrderStatusCreated, getOrder(t, ledger, order.ID).Status)
	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		balance, err := tx.Balance(ctx, order.Buyer)
		assert.Zero(t, balance)
		return err
	}))
}

func testDisputeUniqueness(t *testing.T, ledger repository.Ledger) {
	ctx := context.Background()
	order := seedOrder(t, ledger)

	first, err := entity.NewDispute(order, order.Buyer, "работа не соответствует ТЗ", "", []string{"files/a.png"}, testNow)
	require.NoError(t, err)
	second, err := entity.NewDispute(order, order.Seller, "покупатель не выходит на связь", "", nil, testNow)
	require.NoError(t, err)

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return tx.InsertDispute(ctx, first)
	}))
	err = ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return tx.InsertDispute(ctx, second)
	})
	assert.True(t, errors.Is(err, apperror.ErrDisputeAlreadyExists))

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		got, err := tx.GetDisputeByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, []string{"files/a.png"}, got.Evidence)
		return nil
	}))
}

func testReviewUniqueness(t *testing.T, ledger repository.Ledger) {
	ctx := context.Background()
	order := seedOrder(t, ledger)

	r1, err := entity.NewReview(order.ID, order.Buyer, order.Seller, 5, "отлично", testNow)
	require.NoError(t, err)
	r2, err := entity.NewReview(order.ID, order.Buyer, order.Seller, 1, "передумал", testNow)
	require.NoError(t, err)

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return tx.InsertReview(ctx, r1)
	}))
	err = ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return tx.InsertReview(ctx, r2)
	})
	assert.True(t, errors.Is(err, apperror.ErrReviewAlreadyExists))
}

func testCustody(t *testing.T, ledger repository.Ledger) {
	ctx := context.Background()
	buyer, seller, escrowID := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		if err := tx.Credit(ctx, buyer, valueobject.MaxAmount); err != nil {
			return err
		}
		if err := tx.Deposit(ctx, buyer, escrowID, 1_000_000); err != nil {
			return err
		}
		return tx.Transfer(ctx, escrowID, seller, 975_000)
	}))

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		b, err := tx.Balance(ctx, buyer)
		require.NoError(t, err)
		assert.Equal(t, valueobject.MaxAmount-1_000_000, b)

		e, err := tx.Balance(ctx, escrowID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.Amount(25_000), e)

		s, err := tx.Balance(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, valueobject.Amount(975_000), s)
		return nil
	}))

	err := ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return tx.Transfer(ctx, escrowID, seller, 25_001)
	})
	assert.True(t, errors.Is(err, apperror.ErrInsufficientFunds))

	err = ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return tx.Credit(ctx, buyer, valueobject.MaxAmount)
	})
	assert.True(t, errors.Is(err, apperror.ErrArithmeticOverflow))
}

func testMilestones(t *testing.T, ledger repository.Ledger) {
	ctx := context.Background()
	order := seedOrder(t, ledger)
	due := testNow.Add(48 * time.Hour)

	ms, err := entity.NewMilestones(order, []entity.MilestonePlan{
		{Title: "Эскизы", Amount: 300_000, DueDate: due},
		{Title: "Черновик", Amount: 300_000, DueDate: due},
		{Title: "Финал", Amount: 400_000, DueDate: due},
	}, 10, testNow)
	require.NoError(t, err)

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		// вставка в обратном порядке, чтение всё равно по позиции
		for i := len(ms) - 1; i >= 0; i-- {
			if err := tx.InsertMilestone(ctx, ms[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		list, err := tx.ListMilestones(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "Эскизы", list[0].Title)
		assert.Equal(t, "Финал", list[2].Title)

		m, err := tx.GetMilestone(ctx, ms[1].ID)
		require.NoError(t, err)
		require.NoError(t, m.Start(testNow))
		return tx.UpdateMilestone(ctx, m)
	}))

	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		m, err := tx.GetMilestone(ctx, ms[1].ID)
		require.NoError(t, err)
		assert.Equal(t, valueobject.MilestoneStatusInProgress, m.Status)
		assert.Equal(t, int64(2), m.Version)
		return nil
	}))
}

func testAutoReleaseCandidates(t *testing.T, ledger repository.Ledger) {
	ctx := context.Background()

	due := seedOrder(t, ledger)
	notDue := seedOrder(t, ledger)
	locked := seedOrder(t, ledger)

	fund := func(o *entity.Order, deadline time.Time, lock bool) {
		require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
			current, err := tx.GetOrder(ctx, o.ID)
			if err != nil {
				return err
			}
			if err := current.Accept(testNow); err != nil {
				return err
			}
			if err := tx.UpdateOrder(ctx, current); err != nil {
				return err
			}
			e := entity.NewEscrow(current, testNow)
			if err := e.Fund(entity.FundTerms{
				Amount:             current.Amount,
				FeeRate:            250,
				AutoReleaseEnabled: true,
				DisputeDeadline:    deadline,
			}, testNow); err != nil {
				return err
			}
			if lock {
				if err := e.Lock(testNow); err != nil {
					return err
				}
			}
			return tx.InsertEscrow(ctx, e)
		}))
	}

	fund(due, testNow.Add(time.Hour), false)
	fund(notDue, testNow.Add(48*time.Hour), false)
	fund(locked, testNow.Add(time.Hour), true)

	ids, err := ledger.ListAutoReleaseCandidates(ctx, testNow.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Contains(t, ids, due.ID)
	assert.NotContains(t, ids, notDue.ID)
	assert.NotContains(t, ids, locked.ID)
}

func testConcurrentUpdates(t *testing.T, ledger repository.Ledger) {
	ctx := context.Background()
	order := seedOrder(t, ledger)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
				o, err := tx.GetOrder(ctx, order.ID)
				if err != nil {
					return err
				}
				if err := o.Accept(testNow); err != nil {
					return err
				}
				return tx.UpdateOrder(ctx, o)
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	got := getOrder(t, ledger, order.ID)
	assert.Equal(t, valueobject.OrderStatusAccepted, got.Status)
	assert.Equal(t, int64(2), got.Version)
}
