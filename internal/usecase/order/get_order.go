package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

// OrderDetails заказ вместе с эскроу, спором, этапами и отзывами.
type OrderDetails struct {
	Order      *entity.Order
	Escrow     *entity.Escrow
	Dispute    *entity.Dispute
	Milestones []*entity.Milestone
	Reviews    []*entity.Review
}

type GetOrderUseCase struct {
	deps usecase.Deps
}

func NewGetOrderUseCase(deps usecase.Deps) *GetOrderUseCase {
	return &GetOrderUseCase{deps: deps}
}

// Execute доступен сторонам заказа, арбитрам и администраторам.
func (uc *GetOrderUseCase) Execute(ctx context.Context, orderID, callerID uuid.UUID, role valueobject.Role) (*OrderDetails, error) {
	var out OrderDetails

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.IsParty(callerID) && !role.CanArbitrate() {
			return apperror.ErrNotOrderParty
		}
		out.Order = o

		if out.Escrow, err = usecase.LoadEscrow(ctx, tx, o.ID); err != nil {
			return err
		}

		d, err := tx.GetDisputeByOrder(ctx, o.ID)
		switch {
		case err == nil:
			out.Dispute = d
		case apperror.IsNotFound(err):
		default:
			return apperror.Lift(err, "не удалось получить спор")
		}

		if out.Milestones, err = tx.ListMilestones(ctx, o.ID); err != nil {
			return apperror.Lift(err, "не удалось получить этапы")
		}
		if out.Reviews, err = tx.ListReviewsByOrder(ctx, o.ID); err != nil {
			return apperror.Lift(err, "не удалось получить отзывы")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type ListMyOrdersUseCase struct {
	deps usecase.Deps
}

func NewListMyOrdersUseCase(deps usecase.Deps) *ListMyOrdersUseCase {
	return &ListMyOrdersUseCase{deps: deps}
}

func (uc *ListMyOrdersUseCase) Execute(ctx context.Context, userID uuid.UUID, page repository.Page) ([]*entity.Order, error) {
	var orders []*entity.Order
	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		orders, err = tx.ListOrdersByParty(ctx, userID, page)
		return apperror.Lift(err, "не удалось получить список заказов")
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}
