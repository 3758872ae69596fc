package order

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

type LeaveReviewInput struct {
	OrderID    uuid.UUID
	ReviewerID uuid.UUID
	Rating     int
	Comment    string
}

type LeaveReviewUseCase struct {
	deps usecase.Deps
}

func NewLeaveReviewUseCase(deps usecase.Deps) *LeaveReviewUseCase {
	return &LeaveReviewUseCase{deps: deps}
}

// Execute отзыв стороны по завершённому заказу. Каждая сторона оставляет
// не больше одного отзыва, изменить его нельзя.
func (uc *LeaveReviewUseCase) Execute(ctx context.Context, input LeaveReviewInput) (*entity.Review, error) {
	now := uc.deps.Clock.Now()
	var (
		review *entity.Review
		order  *entity.Order
	)

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		reviewee, err := o.LeaveReview(input.ReviewerID, input.Rating, input.Comment, now)
		if err != nil {
			return err
		}

		r, err := entity.NewReview(o.ID, input.ReviewerID, reviewee, input.Rating, input.Comment, now)
		if err != nil {
			return err
		}
		if err := tx.InsertReview(ctx, r); err != nil {
			return apperror.Lift(err, "не удалось сохранить отзыв")
		}

		// оценка покупателя учитывается и в рейтинге объявления
		if o.IsBuyer(input.ReviewerID) {
			listing, err := usecase.LoadListing(ctx, tx, o.ListingID)
			if err != nil {
				return err
			}
			if err := listing.RecordRating(input.Rating, now); err != nil {
				return err
			}
			if err := usecase.SaveListing(ctx, tx, listing); err != nil {
				return err
			}
		}

		review, order = r, o
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewOrderEvent(entity.EventReviewLeft, order, now))
	uc.deps.Effects.Rating(ctx, order.ID, review.Reviewee, review.Rating)
	return review, nil
}
