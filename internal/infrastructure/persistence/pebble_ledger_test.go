package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
)

func newTestPebbleLedger(t *testing.T, dir string) *PebbleLedger {
	t.Helper()
	ledger, err := NewPebbleLedger(dir)
	require.NoError(t, err)
	return ledger
}

func TestPebbleLedger(t *testing.T) {
	runLedgerContract(t, func(t *testing.T) repository.Ledger {
		ledger := newTestPebbleLedger(t, t.TempDir())
		t.Cleanup(func() { _ = ledger.Close() })
		return ledger
	})
}

func TestPebbleLedger_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ledger := newTestPebbleLedger(t, dir)
	order := seedOrder(t, ledger)
	require.NoError(t, ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return tx.Credit(ctx, order.Buyer, 42)
	}))
	require.NoError(t, ledger.Close())

	reopened := newTestPebbleLedger(t, dir)
	defer reopened.Close()

	got := getOrder(t, reopened, order.ID)
	assert.Equal(t, order.Amount, got.Amount)
	require.NoError(t, reopened.WithinTx(ctx, func(tx repository.LedgerTx) error {
		balance, err := tx.Balance(ctx, order.Buyer)
		assert.Equal(t, valueobject.Amount(42), balance)
		return err
	}))
}
