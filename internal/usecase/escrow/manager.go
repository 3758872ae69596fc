package escrow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

// Manager проводит операции эскроу внутри транзакции леджера: меняет
// запись эскроу и двигает средства по счетам хранения.
// Счёт эскроу в custody совпадает с Escrow.ID.
type Manager struct {
	treasury uuid.UUID
}

func NewManager(treasury uuid.UUID) *Manager {
	return &Manager{treasury: treasury}
}

func (m *Manager) Treasury() uuid.UUID {
	return m.treasury
}

// Fund создаёт эскроу заказа и переводит в него средства покупателя.
func (m *Manager) Fund(ctx context.Context, tx repository.LedgerTx, order *entity.Order, terms entity.FundTerms, now time.Time) (*entity.Escrow, error) {
	e := entity.NewEscrow(order, now)
	if err := e.Fund(terms, now); err != nil {
		return nil, err
	}
	if err := tx.Deposit(ctx, order.Buyer, e.ID, terms.Amount); err != nil {
		return nil, apperror.Lift(err, "не удалось зачислить средства в эскроу")
	}
	if err := tx.InsertEscrow(ctx, e); err != nil {
		return nil, apperror.Lift(err, "не удалось сохранить эскроу")
	}
	return e, nil
}

// Release выплачивает остаток: нетто продавцу, комиссию на счёт платформы.
func (m *Manager) Release(ctx context.Context, tx repository.LedgerTx, e *entity.Escrow, now time.Time) (valueobject.FeeBreakdown, error) {
	breakdown, err := e.Release(now)
	if err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	if err := m.payout(ctx, tx, e, breakdown); err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	return breakdown, m.save(ctx, tx, e)
}

func (m *Manager) Refund(ctx context.Context, tx repository.LedgerTx, e *entity.Escrow, now time.Time) (valueobject.Amount, error) {
	refund, err := e.Refund(now)
	if err != nil {
		return 0, err
	}
	if err := tx.Transfer(ctx, e.ID, e.Buyer, refund); err != nil {
		return 0, apperror.Lift(err, "не удалось вернуть средства покупателю")
	}
	return refund, m.save(ctx, tx, e)
}

// SplitRelease распределяет остаток по решению спора. Нераспределённая
// часть уходит на счёт платформы.
func (m *Manager) SplitRelease(ctx context.Context, tx repository.LedgerTx, e *entity.Escrow, buyerRefund, sellerPayout valueobject.Amount, now time.Time) (valueobject.Amount, error) {
	forfeited, err := e.SplitRelease(buyerRefund, sellerPayout, now)
	if err != nil {
		return 0, err
	}
	if err := tx.Transfer(ctx, e.ID, e.Buyer, buyerRefund); err != nil {
		return 0, apperror.Lift(err, "не удалось вернуть средства покупателю")
	}
	if err := tx.Transfer(ctx, e.ID, e.Seller, sellerPayout); err != nil {
		return 0, apperror.Lift(err, "не удалось выплатить средства продавцу")
	}
	if err := tx.Transfer(ctx, e.ID, m.treasury, forfeited); err != nil {
		return 0, apperror.Lift(err, "не удалось перевести остаток платформе")
	}
	return forfeited, m.save(ctx, tx, e)
}

// PartialRelease выплата по принятому этапу.
func (m *Manager) PartialRelease(ctx context.Context, tx repository.LedgerTx, e *entity.Escrow, amount valueobject.Amount, now time.Time) (valueobject.FeeBreakdown, error) {
	breakdown, err := e.ReleasePartial(amount, now)
	if err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	if err := m.payout(ctx, tx, e, breakdown); err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	return breakdown, m.save(ctx, tx, e)
}

func (m *Manager) Lock(ctx context.Context, tx repository.LedgerTx, e *entity.Escrow, now time.Time) error {
	if err := e.Lock(now); err != nil {
		return err
	}
	return m.save(ctx, tx, e)
}

func (m *Manager) Unlock(ctx context.Context, tx repository.LedgerTx, e *entity.Escrow, now time.Time) error {
	e.Unlock(now)
	return m.save(ctx, tx, e)
}

func (m *Manager) Reschedule(ctx context.Context, tx repository.LedgerTx, e *entity.Escrow, deadline, now time.Time) error {
	e.RescheduleAutoRelease(deadline, now)
	return m.save(ctx, tx, e)
}

func (m *Manager) payout(ctx context.Context, tx repository.LedgerTx, e *entity.Escrow, b valueobject.FeeBreakdown) error {
	if err := tx.Transfer(ctx, e.ID, e.Seller, b.Net); err != nil {
		return apperror.Lift(err, "не удалось выплатить средства продавцу")
	}
	if err := tx.Transfer(ctx, e.ID, m.treasury, b.Fee); err != nil {
		return apperror.Lift(err, "не удалось перевести комиссию платформе")
	}
	return nil
}

func (m *Manager) save(ctx context.Context, tx repository.LedgerTx, e *entity.Escrow) error {
	if err := tx.UpdateEscrow(ctx, e); err != nil {
		return apperror.Lift(err, "не удалось сохранить эскроу")
	}
	return nil
}
