package entity

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/validation"
)

// ListingLimits ограничения платформы на параметры объявления.
type ListingLimits struct {
	MinPrice        valueobject.Amount
	MaxPrice        valueobject.Amount
	MinDeliveryTime time.Duration
	MaxDeliveryTime time.Duration
	MaxRevisions    int
}

type Listing struct {
	ID              uuid.UUID
	Owner           uuid.UUID
	Title           string
	Description     string
	Price           valueobject.Amount
	DeliveryTime    time.Duration
	MaxRevisions    int
	Active          bool
	TotalOrders     uint64
	CompletedOrders uint64
	RatingSum       uint64
	RatingCount     uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

// ListingTerms изменяемые продавцом условия.
type ListingTerms struct {
	Title        string
	Description  string
	Price        valueobject.Amount
	DeliveryTime time.Duration
	MaxRevisions int
}

func NewListing(owner uuid.UUID, terms ListingTerms, limits ListingLimits, now time.Time) (*Listing, error) {
	if owner == uuid.Nil {
		return nil, apperror.Validation("владелец объявления обязателен")
	}
	if err := terms.validate(limits); err != nil {
		return nil, err
	}

	return &Listing{
		ID:           uuid.New(),
		Owner:        owner,
		Title:        terms.Title,
		Description:  terms.Description,
		Price:        terms.Price,
		DeliveryTime: terms.DeliveryTime,
		MaxRevisions: terms.MaxRevisions,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (t ListingTerms) validate(limits ListingLimits) error {
	if err := validation.ValidateNonEmpty("название", t.Title); err != nil {
		return err
	}
	if err := validation.ValidateLength("название", t.Title, 0, validation.MaxListingTitleLength); err != nil {
		return err
	}
	if err := validation.ValidateLength("описание", t.Description, 0, validation.MaxListingDescriptionLength); err != nil {
		return err
	}
	if t.Price == 0 || t.Price < limits.MinPrice {
		return apperror.Validation("цена ниже минимальной (%d)", limits.MinPrice)
	}
	if limits.MaxPrice > 0 && t.Price > limits.MaxPrice {
		return apperror.Validation("цена выше максимальной (%d)", limits.MaxPrice)
	}
	minDelivery := limits.MinDeliveryTime
	if minDelivery <= 0 {
		minDelivery = time.Hour
	}
	if t.DeliveryTime < minDelivery {
		return apperror.Validation("срок выполнения должен быть не меньше %s", minDelivery)
	}
	if limits.MaxDeliveryTime > 0 && t.DeliveryTime > limits.MaxDeliveryTime {
		return apperror.Validation("срок выполнения должен быть не больше %s", limits.MaxDeliveryTime)
	}
	if t.MaxRevisions < 0 || t.MaxRevisions > limits.MaxRevisions {
		return apperror.Validation("количество доработок должно быть от 0 до %d", limits.MaxRevisions)
	}
	return nil
}

// UpdateTerms меняет условия. На уже созданные заказы не влияет:
// цена и срок копируются в заказ при покупке.
func (l *Listing) UpdateTerms(terms ListingTerms, limits ListingLimits, now time.Time) error {
	if err := terms.validate(limits); err != nil {
		return err
	}
	l.Title = terms.Title
	l.Description = terms.Description
	l.Price = terms.Price
	l.DeliveryTime = terms.DeliveryTime
	l.MaxRevisions = terms.MaxRevisions
	l.UpdatedAt = now
	return nil
}

func (l *Listing) Deactivate(now time.Time) {
	l.Active = false
	l.UpdatedAt = now
}

func (l *Listing) IsOwnedBy(userID uuid.UUID) bool {
	return l.Owner == userID
}

func (l *Listing) RecordOrder(now time.Time) error {
	if err := increment(&l.TotalOrders, 1); err != nil {
		return err
	}
	l.UpdatedAt = now
	return nil
}

// RecordCompletion учитывает завершённый заказ и, если есть, оценку покупателя.
func (l *Listing) RecordCompletion(rating *int, now time.Time) error {
	if err := increment(&l.CompletedOrders, 1); err != nil {
		return err
	}
	if rating != nil {
		if err := l.RecordRating(*rating, now); err != nil {
			return err
		}
	}
	l.UpdatedAt = now
	return nil
}

func (l *Listing) RecordRating(rating int, now time.Time) error {
	if err := validation.ValidateRating(rating); err != nil {
		return err
	}
	if err := increment(&l.RatingSum, uint64(rating)); err != nil {
		return err
	}
	if err := increment(&l.RatingCount, 1); err != nil {
		return err
	}
	l.UpdatedAt = now
	return nil
}

func (l *Listing) AverageRating() float64 {
	if l.RatingCount == 0 {
		return 0
	}
	return float64(l.RatingSum) / float64(l.RatingCount)
}

func increment(counter *uint64, delta uint64) error {
	if *counter > math.MaxUint64-delta {
		return apperror.ErrArithmeticOverflow
	}
	*counter += delta
	return nil
}
