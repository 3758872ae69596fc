package wallet

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

type DepositUseCase struct {
	deps usecase.Deps
}

func NewDepositUseCase(deps usecase.Deps) *DepositUseCase {
	return &DepositUseCase{deps: deps}
}

// Execute зачисляет внешнее пополнение на счёт пользователя и возвращает новый баланс.
func (uc *DepositUseCase) Execute(ctx context.Context, userID uuid.UUID, amount valueobject.Amount) (valueobject.Amount, error) {
	if userID == uuid.Nil {
		return 0, apperror.Validation("счёт обязателен")
	}
	if amount == 0 {
		return 0, apperror.Validation("сумма пополнения должна быть положительной")
	}

	now := uc.deps.Clock.Now()
	var balance valueobject.Amount
	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		if err := tx.Credit(ctx, userID, amount); err != nil {
			return apperror.Lift(err, "не удалось пополнить счёт")
		}
		var err error
		balance, err = tx.Balance(ctx, userID)
		return apperror.Lift(err, "не удалось получить баланс")
	})
	if err != nil {
		return 0, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewWalletEvent(userID, amount, now))
	return balance, nil
}

type BalanceUseCase struct {
	deps usecase.Deps
}

func NewBalanceUseCase(deps usecase.Deps) *BalanceUseCase {
	return &BalanceUseCase{deps: deps}
}

func (uc *BalanceUseCase) Execute(ctx context.Context, userID uuid.UUID) (valueobject.Amount, error) {
	var balance valueobject.Amount
	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		balance, err = tx.Balance(ctx, userID)
		return apperror.Lift(err, "не удалось получить баланс")
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}
