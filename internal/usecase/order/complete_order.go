package order

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

type CompleteOrderInput struct {
	OrderID uuid.UUID
	BuyerID uuid.UUID
	Rating  int
	Review  string
}

type CompleteOrderOutput struct {
	Order  *entity.Order
	Escrow *entity.Escrow
	Payout valueobject.FeeBreakdown
}

type CompleteOrderUseCase struct {
	deps usecase.Deps
}

func NewCompleteOrderUseCase(deps usecase.Deps) *CompleteOrderUseCase {
	return &CompleteOrderUseCase{deps: deps}
}

// Execute принимает работу: выплачивает остаток эскроу продавцу по
// ставке, зафиксированной при пополнении, и сохраняет отзыв покупателя.
func (uc *CompleteOrderUseCase) Execute(ctx context.Context, input CompleteOrderInput) (*CompleteOrderOutput, error) {
	now := uc.deps.Clock.Now()
	var out CompleteOrderOutput

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if !o.IsBuyer(input.BuyerID) {
			return apperror.ErrForbidden
		}
		if err := o.Complete(input.Rating, input.Review, now); err != nil {
			return err
		}

		e, err := usecase.LoadEscrow(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		payout, err := uc.deps.Escrow.Release(ctx, tx, e, now)
		if err != nil {
			return err
		}

		review, err := entity.NewReview(o.ID, o.Buyer, o.Seller, input.Rating, input.Review, now)
		if err != nil {
			return err
		}
		if err := tx.InsertReview(ctx, review); err != nil {
			return apperror.Lift(err, "не удалось сохранить отзыв")
		}

		if err := recordListingCompletion(ctx, tx, o, o.BuyerRating, now); err != nil {
			return err
		}

		out = CompleteOrderOutput{Order: o, Escrow: e, Payout: payout}
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, completionEvent(entity.EventOrderCompleted, out.Order, out.Escrow, now))
	uc.deps.Effects.OrderCompleted(ctx, out.Order, out.Order.BuyerRating, out.Payout.Net)
	return &out, nil
}

type AutoReleaseOutput struct {
	Order    *entity.Order
	Escrow   *entity.Escrow
	Released bool
	Payout   valueobject.FeeBreakdown
}

type AutoReleaseUseCase struct {
	deps usecase.Deps
}

func NewAutoReleaseUseCase(deps usecase.Deps) *AutoReleaseUseCase {
	return &AutoReleaseUseCase{deps: deps}
}

// Execute завершает заказ по истечении срока спора. Вызвать может кто угодно.
// Если средства эскроу уже выплачены, операция ничего не делает.
func (uc *AutoReleaseUseCase) Execute(ctx context.Context, orderID uuid.UUID) (*AutoReleaseOutput, error) {
	now := uc.deps.Clock.Now()
	var out AutoReleaseOutput

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		e, err := usecase.LoadEscrow(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		out = AutoReleaseOutput{Order: o, Escrow: e}

		if e.IsDisbursed() {
			return nil
		}
		if !o.Status.IsActive() {
			return apperror.ErrInvalidOrderStatus
		}
		if !e.CanAutoRelease(now) {
			return apperror.ErrAutoReleaseNotDue
		}

		if err := o.AutoComplete(now); err != nil {
			return err
		}
		payout, err := uc.deps.Escrow.Release(ctx, tx, e, now)
		if err != nil {
			return err
		}
		if err := recordListingCompletion(ctx, tx, o, nil, now); err != nil {
			return err
		}

		out.Released = true
		out.Payout = payout
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	if out.Released {
		uc.deps.Effects.Publish(ctx, completionEvent(entity.EventOrderAutoReleased, out.Order, out.Escrow, now))
		uc.deps.Effects.OrderCompleted(ctx, out.Order, nil, out.Payout.Net)
	}
	return &out, nil
}

func recordListingCompletion(ctx context.Context, tx repository.LedgerTx, o *entity.Order, rating *int, now time.Time) error {
	listing, err := usecase.LoadListing(ctx, tx, o.ListingID)
	if err != nil {
		return err
	}
	if err := listing.RecordCompletion(rating, now); err != nil {
		return err
	}
	return usecase.SaveListing(ctx, tx, listing)
}

func completionEvent(t entity.EventType, o *entity.Order, e *entity.Escrow, now time.Time) entity.Event {
	ev := entity.NewOrderEvent(t, o, now)
	ev.PlatformFee = e.PlatformFee
	ev.SellerPayout = e.SellerNet
	return ev
}
