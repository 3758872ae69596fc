package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

type CreateOrderInput struct {
	BuyerID      uuid.UUID
	ListingID    uuid.UUID
	Requirements string
	Milestones   []entity.MilestonePlan
}

type CreateOrderOutput struct {
	Order      *entity.Order
	Escrow     *entity.Escrow
	Milestones []*entity.Milestone
}

type CreateOrderUseCase struct {
	deps usecase.Deps
}

func NewCreateOrderUseCase(deps usecase.Deps) *CreateOrderUseCase {
	return &CreateOrderUseCase{deps: deps}
}

// Execute оформляет заказ и сразу пополняет эскроу со счёта покупателя.
// При нехватке средств ничего не сохраняется.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, input CreateOrderInput) (*CreateOrderOutput, error) {
	now := uc.deps.Clock.Now()
	policy := uc.deps.Policy
	var out CreateOrderOutput

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		listing, err := usecase.LoadListing(ctx, tx, input.ListingID)
		if err != nil {
			return err
		}

		order, err := entity.NewOrder(listing, input.BuyerID, input.Requirements, len(input.Milestones), now)
		if err != nil {
			return err
		}
		milestones, err := entity.NewMilestones(order, input.Milestones, policy.MaxMilestones, now)
		if err != nil {
			return err
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return apperror.Lift(err, "не удалось создать заказ")
		}

		escrow, err := uc.deps.Escrow.Fund(ctx, tx, order, entity.FundTerms{
			Amount:             order.Amount,
			FeeRate:            policy.FeeRate,
			AutoReleaseEnabled: policy.AutoReleaseEnabled,
			DisputeDeadline:    order.UndeliveredReleaseAt(policy.DisputePeriod, now),
		}, now)
		if err != nil {
			return err
		}

		for _, m := range milestones {
			if err := tx.InsertMilestone(ctx, m); err != nil {
				return apperror.Lift(err, "не удалось сохранить этап")
			}
		}

		if err := listing.RecordOrder(now); err != nil {
			return err
		}
		if err := usecase.SaveListing(ctx, tx, listing); err != nil {
			return err
		}

		out = CreateOrderOutput{Order: order, Escrow: escrow, Milestones: milestones}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewOrderEvent(entity.EventOrderCreated, out.Order, now))
	return &out, nil
}
