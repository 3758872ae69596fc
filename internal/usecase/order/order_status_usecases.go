package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

type AcceptOrderUseCase struct {
	deps usecase.Deps
}

func NewAcceptOrderUseCase(deps usecase.Deps) *AcceptOrderUseCase {
	return &AcceptOrderUseCase{deps: deps}
}

func (uc *AcceptOrderUseCase) Execute(ctx context.Context, orderID, sellerID uuid.UUID) (*entity.Order, error) {
	now := uc.deps.Clock.Now()
	var order *entity.Order

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.IsSeller(sellerID) {
			return apperror.ErrForbidden
		}
		if err := o.Accept(now); err != nil {
			return err
		}
		order = o
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewOrderEvent(entity.EventOrderAccepted, order, now))
	return order, nil
}

type StartOrderUseCase struct {
	deps usecase.Deps
}

func NewStartOrderUseCase(deps usecase.Deps) *StartOrderUseCase {
	return &StartOrderUseCase{deps: deps}
}

func (uc *StartOrderUseCase) Execute(ctx context.Context, orderID, sellerID uuid.UUID) (*entity.Order, error) {
	now := uc.deps.Clock.Now()
	var order *entity.Order

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.IsSeller(sellerID) {
			return apperror.ErrForbidden
		}
		if err := o.Start(now); err != nil {
			return err
		}
		order = o
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewOrderEvent(entity.EventOrderStarted, order, now))
	return order, nil
}

type DeliverOrderInput struct {
	OrderID  uuid.UUID
	SellerID uuid.UUID
	Notes    string
	Files    []string
}

type DeliverOrderUseCase struct {
	deps usecase.Deps
}

func NewDeliverOrderUseCase(deps usecase.Deps) *DeliverOrderUseCase {
	return &DeliverOrderUseCase{deps: deps}
}

// Execute сдаёт работу. Срок автовыплаты переносится на конец окна спора
// от момента сдачи.
func (uc *DeliverOrderUseCase) Execute(ctx context.Context, input DeliverOrderInput) (*entity.Order, error) {
	now := uc.deps.Clock.Now()
	var order *entity.Order

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if !o.IsSeller(input.SellerID) {
			return apperror.ErrForbidden
		}
		if err := o.Deliver(input.Notes, input.Files, now); err != nil {
			return err
		}

		e, err := usecase.LoadEscrow(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		end, _ := o.DisputeWindowEnd(uc.deps.Policy.DisputePeriod)
		if err := uc.deps.Escrow.Reschedule(ctx, tx, e, end, now); err != nil {
			return err
		}

		order = o
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewOrderEvent(entity.EventOrderDelivered, order, now))
	return order, nil
}

type RequestRevisionUseCase struct {
	deps usecase.Deps
}

func NewRequestRevisionUseCase(deps usecase.Deps) *RequestRevisionUseCase {
	return &RequestRevisionUseCase{deps: deps}
}

func (uc *RequestRevisionUseCase) Execute(ctx context.Context, orderID, buyerID uuid.UUID) (*entity.Order, error) {
	now := uc.deps.Clock.Now()
	var order *entity.Order

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.IsBuyer(buyerID) {
			return apperror.ErrForbidden
		}
		if err := o.RequestRevision(now); err != nil {
			return err
		}

		// окно сданной работы больше не действует, до повторной сдачи
		// автовыплата ждёт срока заказа
		e, err := usecase.LoadEscrow(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		releaseAt := o.UndeliveredReleaseAt(uc.deps.Policy.DisputePeriod, now)
		if err := uc.deps.Escrow.Reschedule(ctx, tx, e, releaseAt, now); err != nil {
			return err
		}
		order = o
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewOrderEvent(entity.EventOrderRevisionRequested, order, now))
	return order, nil
}

type CancelOrderUseCase struct {
	deps usecase.Deps
}

func NewCancelOrderUseCase(deps usecase.Deps) *CancelOrderUseCase {
	return &CancelOrderUseCase{deps: deps}
}

// Execute отменяет заказ и возвращает покупателю весь остаток эскроу.
func (uc *CancelOrderUseCase) Execute(ctx context.Context, orderID, callerID uuid.UUID) (*entity.Order, *entity.Escrow, error) {
	now := uc.deps.Clock.Now()
	var (
		order  *entity.Order
		escrow *entity.Escrow
	)

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := o.Cancel(callerID, now); err != nil {
			return err
		}
		e, err := usecase.LoadEscrow(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if _, err := uc.deps.Escrow.Refund(ctx, tx, e, now); err != nil {
			return err
		}
		order, escrow = o, e
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, nil, err
	}

	ev := entity.NewOrderEvent(entity.EventOrderCancelled, order, now)
	ev.BuyerRefund = escrow.BuyerRefunded
	uc.deps.Effects.Publish(ctx, ev)
	return order, escrow, nil
}
