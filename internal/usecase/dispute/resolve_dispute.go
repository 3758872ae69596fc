package dispute

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

type AssignArbiterInput struct {
	OrderID  uuid.UUID
	CallerID uuid.UUID
	Role     valueobject.Role
	// ArbiterID по умолчанию сам вызывающий
	ArbiterID uuid.UUID
}

type AssignArbiterUseCase struct {
	deps usecase.Deps
}

func NewAssignArbiterUseCase(deps usecase.Deps) *AssignArbiterUseCase {
	return &AssignArbiterUseCase{deps: deps}
}

func (uc *AssignArbiterUseCase) Execute(ctx context.Context, input AssignArbiterInput) (*entity.Dispute, error) {
	if !input.Role.CanArbitrate() {
		return nil, apperror.ErrForbidden
	}
	arbiter := input.ArbiterID
	if arbiter == uuid.Nil {
		arbiter = input.CallerID
	}

	now := uc.deps.Clock.Now()
	var (
		dispute *entity.Dispute
		order   *entity.Order
	)

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		d, err := usecase.LoadDispute(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if err := d.AssignArbiter(arbiter, now); err != nil {
			return err
		}
		if err := o.AssignArbiter(arbiter, now); err != nil {
			return err
		}
		if err := usecase.SaveDispute(ctx, tx, d); err != nil {
			return err
		}
		dispute, order = d, o
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewOrderEvent(entity.EventDisputeArbiterAssigned, order, now))
	return dispute, nil
}

type ResolveDisputeInput struct {
	OrderID          uuid.UUID
	CallerID         uuid.UUID
	Role             valueobject.Role
	RefundPercentage uint8
	Resolution       string
}

type ResolveDisputeOutput struct {
	Order   *entity.Order
	Escrow  *entity.Escrow
	Dispute *entity.Dispute
	// Forfeited нераспределённый остаток, ушедший платформе
	Forfeited valueobject.Amount
}

type ResolveDisputeUseCase struct {
	deps usecase.Deps
}

func NewResolveDisputeUseCase(deps usecase.Deps) *ResolveDisputeUseCase {
	return &ResolveDisputeUseCase{deps: deps}
}

// Execute делит остаток эскроу между сторонами: покупателю
// floor(остаток*pct/100), продавцу всё остальное. Комиссия со спорной
// суммы не удерживается и записывается в PlatformFeeRefund.
func (uc *ResolveDisputeUseCase) Execute(ctx context.Context, input ResolveDisputeInput) (*ResolveDisputeOutput, error) {
	now := uc.deps.Clock.Now()
	var out ResolveDisputeOutput

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		d, err := usecase.LoadDispute(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if !d.CanBeDecidedBy(input.CallerID, input.Role) {
			return apperror.ErrForbidden
		}
		if err := d.CheckResolvable(); err != nil {
			return err
		}

		e, err := usecase.LoadEscrow(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		split, err := valueobject.SplitByPercentage(e.Amount, input.RefundPercentage)
		if err != nil {
			return err
		}
		waived, err := valueobject.CalculateFee(e.Amount, e.FeeRate)
		if err != nil {
			return err
		}

		forfeited, err := uc.deps.Escrow.SplitRelease(ctx, tx, e, split.BuyerRefund, split.SellerPayout, now)
		if err != nil {
			return err
		}
		if err := d.Resolve(input.Resolution, entity.DisputeOutcome{
			RefundPercentage:  input.RefundPercentage,
			BuyerRefund:       split.BuyerRefund,
			SellerPayout:      split.SellerPayout,
			PlatformFeeRefund: waived.Fee,
		}, now); err != nil {
			return err
		}
		if err := o.Resolve(now); err != nil {
			return err
		}
		if err := usecase.SaveDispute(ctx, tx, d); err != nil {
			return err
		}

		out = ResolveDisputeOutput{Order: o, Escrow: e, Dispute: d, Forfeited: forfeited}
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	ev := entity.NewOrderEvent(entity.EventDisputeResolved, out.Order, now)
	ev.BuyerRefund = out.Dispute.BuyerRefund
	ev.SellerPayout = out.Dispute.SellerPayout
	uc.deps.Effects.Publish(ctx, ev)
	uc.deps.Effects.Earnings(ctx, out.Order.ID, out.Order.Seller, out.Dispute.SellerPayout)
	return &out, nil
}

type DismissDisputeInput struct {
	OrderID    uuid.UUID
	CallerID   uuid.UUID
	Role       valueobject.Role
	Resolution string
}

type DismissDisputeUseCase struct {
	deps usecase.Deps
}

func NewDismissDisputeUseCase(deps usecase.Deps) *DismissDisputeUseCase {
	return &DismissDisputeUseCase{deps: deps}
}

// Execute отклоняет спор: эскроу разблокируется, заказ возвращается в
// статус до спора. Окно спора после сдачи не продлевается.
func (uc *DismissDisputeUseCase) Execute(ctx context.Context, input DismissDisputeInput) (*entity.Dispute, error) {
	now := uc.deps.Clock.Now()
	var (
		dispute *entity.Dispute
		order   *entity.Order
	)

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		d, err := usecase.LoadDispute(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if !d.CanBeDecidedBy(input.CallerID, input.Role) {
			return apperror.ErrForbidden
		}
		if err := d.Dismiss(input.Resolution, now); err != nil {
			return err
		}
		if err := o.RestoreAfterDismissal(now); err != nil {
			return err
		}

		e, err := usecase.LoadEscrow(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if err := uc.deps.Escrow.Unlock(ctx, tx, e, now); err != nil {
			return err
		}
		if err := usecase.SaveDispute(ctx, tx, d); err != nil {
			return err
		}
		dispute, order = d, o
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewOrderEvent(entity.EventDisputeDismissed, order, now))
	return dispute, nil
}
