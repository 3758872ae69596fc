package escrow_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/infrastructure/persistence"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase/escrow"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newOrder(t *testing.T) *entity.Order {
	t.Helper()
	l := &entity.Listing{ID: uuid.New(), Owner: uuid.New(), Title: "Перевод", Price: 1_000, DeliveryTime: time.Hour, Active: true}
	o, err := entity.NewOrder(l, uuid.New(), "", 0, now)
	require.NoError(t, err)
	return o
}

func fund(t *testing.T, ledger repository.Ledger, m *escrow.Manager, o *entity.Order) *entity.Escrow {
	t.Helper()
	ctx := context.Background()
	var e *entity.Escrow
	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		if err := tx.Credit(ctx, o.Buyer, o.Amount); err != nil {
			return err
		}
		var err error
		e, err = m.Fund(ctx, tx, o, entity.FundTerms{Amount: o.Amount, FeeRate: 250, DisputeDeadline: o.Deadline}, now)
		return err
	}))
	return e
}

func balance(t *testing.T, ledger repository.Ledger, account uuid.UUID) valueobject.Amount {
	t.Helper()
	ctx := context.Background()
	var b valueobject.Amount
	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		b, err = tx.Balance(ctx, account)
		return err
	}))
	return b
}

func TestManager_FundWithoutBalance(t *testing.T) {
	ledger := persistence.NewMemoryLedger()
	m := escrow.NewManager(uuid.New())
	o := newOrder(t)
	ctx := context.Background()

	err := ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		_, err := m.Fund(ctx, tx, o, entity.FundTerms{Amount: o.Amount, FeeRate: 250}, now)
		return err
	})
	require.ErrorIs(t, err, apperror.ErrInsufficientFunds)
}

func TestManager_SplitForfeitsRemainderToTreasury(t *testing.T) {
	ledger := persistence.NewMemoryLedger()
	treasury := uuid.New()
	m := escrow.NewManager(treasury)
	o := newOrder(t)
	e := fund(t, ledger, m, o)
	ctx := context.Background()

	var forfeited valueobject.Amount
	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		stored, err := tx.GetEscrowByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		forfeited, err = m.SplitRelease(ctx, tx, stored, 100, 200, now)
		return err
	}))

	assert.Equal(t, valueobject.Amount(700), forfeited)
	assert.Equal(t, valueobject.Amount(100), balance(t, ledger, o.Buyer))
	assert.Equal(t, valueobject.Amount(200), balance(t, ledger, o.Seller))
	assert.Equal(t, valueobject.Amount(700), balance(t, ledger, treasury))
	assert.Zero(t, balance(t, ledger, e.ID))
}

func TestManager_LockedEscrowCannotRelease(t *testing.T) {
	ledger := persistence.NewMemoryLedger()
	m := escrow.NewManager(uuid.New())
	o := newOrder(t)
	funded := fund(t, ledger, m, o)
	ctx := context.Background()

	err := ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		e, err := tx.GetEscrowByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if err := m.Lock(ctx, tx, e, now); err != nil {
			return err
		}
		_, err = m.Release(ctx, tx, e, now)
		return err
	})
	require.ErrorIs(t, err, apperror.ErrEscrowLocked)
	// транзакция откатилась целиком, блокировка тоже
	assert.Equal(t, valueobject.Amount(1_000), balance(t, ledger, funded.ID))
	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		e, err := tx.GetEscrowByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		assert.False(t, e.Locked)
		return nil
	}))
}
