package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/validation"
)

// Review неизменяемый отзыв, один на пару (заказ, автор).
type Review struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Reviewer  uuid.UUID
	Reviewee  uuid.UUID
	Rating    int
	Comment   string
	CreatedAt time.Time
}

func NewReview(orderID, reviewer, reviewee uuid.UUID, rating int, comment string, now time.Time) (*Review, error) {
	if err := validation.ValidateRating(rating); err != nil {
		return nil, err
	}
	if err := validation.ValidateLength("отзыв", comment, 0, validation.MaxReviewLength); err != nil {
		return nil, err
	}
	return &Review{
		ID:        uuid.New(),
		OrderID:   orderID,
		Reviewer:  reviewer,
		Reviewee:  reviewee,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: now,
	}, nil
}
