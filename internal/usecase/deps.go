package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
	"github.com/ignatzorin/escrow-market/internal/usecase/escrow"
)

// Deps общие зависимости use case'ов заказа, спора и этапов.
type Deps struct {
	Ledger  repository.Ledger
	Clock   clock.Clock
	Escrow  *escrow.Manager
	Policy  entity.PlatformPolicy
	Effects *SideEffects
}

func LoadOrder(ctx context.Context, tx repository.LedgerTx, orderID uuid.UUID) (*entity.Order, error) {
	o, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Lift(err, "не удалось получить заказ")
	}
	return o, nil
}

func LoadEscrow(ctx context.Context, tx repository.LedgerTx, orderID uuid.UUID) (*entity.Escrow, error) {
	e, err := tx.GetEscrowByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Lift(err, "не удалось получить эскроу")
	}
	return e, nil
}

func LoadDispute(ctx context.Context, tx repository.LedgerTx, orderID uuid.UUID) (*entity.Dispute, error) {
	d, err := tx.GetDisputeByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Lift(err, "не удалось получить спор")
	}
	return d, nil
}

func LoadListing(ctx context.Context, tx repository.LedgerTx, listingID uuid.UUID) (*entity.Listing, error) {
	l, err := tx.GetListing(ctx, listingID)
	if err != nil {
		return nil, apperror.Lift(err, "не удалось получить объявление")
	}
	return l, nil
}

func SaveOrder(ctx context.Context, tx repository.LedgerTx, o *entity.Order) error {
	if err := tx.UpdateOrder(ctx, o); err != nil {
		return apperror.Lift(err, "не удалось сохранить заказ")
	}
	return nil
}

func SaveListing(ctx context.Context, tx repository.LedgerTx, l *entity.Listing) error {
	if err := tx.UpdateListing(ctx, l); err != nil {
		return apperror.Lift(err, "не удалось обновить объявление")
	}
	return nil
}

func SaveDispute(ctx context.Context, tx repository.LedgerTx, d *entity.Dispute) error {
	if err := tx.UpdateDispute(ctx, d); err != nil {
		return apperror.Lift(err, "не удалось сохранить спор")
	}
	return nil
}
