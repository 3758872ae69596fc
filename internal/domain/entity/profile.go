package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/validation"
)

// Profile репутационные счётчики пользователя.
type Profile struct {
	UserID          uuid.UUID
	CompletedOrders uint64
	TotalReviews    uint64
	RatingSum       uint64
	// AverageRating средняя оценка, умноженная на 100
	AverageRating uint32
	TotalEarnings valueobject.Amount
	UpdatedAt     time.Time
	Version       int64
}

func NewProfile(userID uuid.UUID, now time.Time) *Profile {
	return &Profile{UserID: userID, UpdatedAt: now}
}

func (p *Profile) RecordCompletion(rating *int, now time.Time) error {
	if err := increment(&p.CompletedOrders, 1); err != nil {
		return err
	}
	if rating != nil {
		if err := p.RecordRating(*rating, now); err != nil {
			return err
		}
	}
	p.UpdatedAt = now
	return nil
}

func (p *Profile) RecordRating(rating int, now time.Time) error {
	if err := validation.ValidateRating(rating); err != nil {
		return err
	}
	if err := increment(&p.RatingSum, uint64(rating)); err != nil {
		return err
	}
	if err := increment(&p.TotalReviews, 1); err != nil {
		return err
	}
	p.AverageRating = uint32(p.RatingSum * 100 / p.TotalReviews)
	p.UpdatedAt = now
	return nil
}

func (p *Profile) RecordEarnings(amount valueobject.Amount, now time.Time) error {
	total, err := valueobject.CheckedAdd(p.TotalEarnings, amount)
	if err != nil {
		return err
	}
	p.TotalEarnings = total
	p.UpdatedAt = now
	return nil
}
