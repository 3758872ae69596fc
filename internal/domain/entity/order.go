package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/validation"
)

type Order struct {
	ID           uuid.UUID
	ListingID    uuid.UUID
	Buyer        uuid.UUID
	Seller       uuid.UUID
	Amount       valueobject.Amount
	Status       valueobject.OrderStatus
	Requirements string

	DeliveryNotes string
	DeliveryFiles []string

	Deadline            time.Time
	RevisionCount       int
	MaxRevisions        int
	MilestoneCount      int
	CompletedMilestones int

	// BuyerRating/BuyerReview оставлены покупателем о продавце, Seller* наоборот.
	BuyerRating  *int
	BuyerReview  *string
	SellerRating *int
	SellerReview *string

	Arbiter          *uuid.UUID
	PreDisputeStatus *valueobject.OrderStatus

	CreatedAt   time.Time
	AcceptedAt  *time.Time
	StartedAt   *time.Time
	DeliveredAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	DisputedAt  *time.Time
	ResolvedAt  *time.Time
	UpdatedAt   time.Time
	Version     int64
}

// NewOrder оформляет покупку объявления. Цена, срок и лимит доработок
// фиксируются в заказе в момент покупки.
func NewOrder(listing *Listing, buyer uuid.UUID, requirements string, milestoneCount int, now time.Time) (*Order, error) {
	if listing == nil {
		return nil, apperror.ErrListingNotFound
	}
	if !listing.Active {
		return nil, apperror.ErrListingInactive
	}
	if buyer == uuid.Nil {
		return nil, apperror.Validation("покупатель обязателен")
	}
	if buyer == listing.Owner {
		return nil, apperror.ErrSelfPurchase
	}
	if err := validation.ValidateLength("требования", requirements, 0, validation.MaxRequirementsLength); err != nil {
		return nil, err
	}
	if milestoneCount < 0 {
		return nil, apperror.Validation("количество этапов не может быть отрицательным")
	}

	return &Order{
		ID:             uuid.New(),
		ListingID:      listing.ID,
		Buyer:          buyer,
		Seller:         listing.Owner,
		Amount:         listing.Price,
		Status:         valueobject.OrderStatusCreated,
		Requirements:   requirements,
		Deadline:       now.Add(listing.DeliveryTime),
		MaxRevisions:   listing.MaxRevisions,
		MilestoneCount: milestoneCount,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (o *Order) IsBuyer(userID uuid.UUID) bool {
	return o.Buyer == userID
}

func (o *Order) IsSeller(userID uuid.UUID) bool {
	return o.Seller == userID
}

func (o *Order) IsParty(userID uuid.UUID) bool {
	return o.IsBuyer(userID) || o.IsSeller(userID)
}

func (o *Order) requireStatus(allowed ...valueobject.OrderStatus) error {
	for _, s := range allowed {
		if o.Status == s {
			return nil
		}
	}
	return apperror.ErrInvalidOrderStatus
}

func (o *Order) moveTo(status valueobject.OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(status) {
		return apperror.ErrInvalidOrderStatus
	}
	o.Status = status
	o.UpdatedAt = now
	return nil
}

func (o *Order) Accept(now time.Time) error {
	if err := o.requireStatus(valueobject.OrderStatusCreated); err != nil {
		return err
	}
	if err := o.moveTo(valueobject.OrderStatusAccepted, now); err != nil {
		return err
	}
	o.AcceptedAt = &now
	return nil
}

func (o *Order) Start(now time.Time) error {
	if err := o.requireStatus(valueobject.OrderStatusAccepted); err != nil {
		return err
	}
	if err := o.moveTo(valueobject.OrderStatusInProgress, now); err != nil {
		return err
	}
	o.StartedAt = &now
	return nil
}

func (o *Order) Deliver(notes string, files []string, now time.Time) error {
	if err := o.requireStatus(valueobject.OrderStatusAccepted, valueobject.OrderStatusInProgress); err != nil {
		return err
	}
	if err := validation.ValidateLength("комментарий к сдаче", notes, 0, validation.MaxDeliveryNotesLength); err != nil {
		return err
	}
	if err := validation.ValidateRefs("файлы результата", files); err != nil {
		return err
	}
	if err := o.moveTo(valueobject.OrderStatusDelivered, now); err != nil {
		return err
	}
	o.DeliveryNotes = notes
	o.DeliveryFiles = append([]string(nil), files...)
	o.DeliveredAt = &now
	return nil
}

func (o *Order) RequestRevision(now time.Time) error {
	if err := o.requireStatus(valueobject.OrderStatusDelivered); err != nil {
		return err
	}
	if o.RevisionCount >= o.MaxRevisions {
		return apperror.ErrRevisionLimitExceeded
	}
	if err := o.moveTo(valueobject.OrderStatusInProgress, now); err != nil {
		return err
	}
	o.RevisionCount++
	return nil
}

// Complete закрывает заказ покупателем. При оплате по этапам все этапы
// должны быть приняты.
func (o *Order) Complete(rating int, review string, now time.Time) error {
	if err := o.requireStatus(valueobject.OrderStatusDelivered); err != nil {
		return err
	}
	if o.MilestoneCount > 0 && o.CompletedMilestones < o.MilestoneCount {
		return apperror.ErrAllMilestonesMustBeCompleted
	}
	if err := validation.ValidateRating(rating); err != nil {
		return err
	}
	if err := validation.ValidateLength("отзыв", review, 0, validation.MaxReviewLength); err != nil {
		return err
	}
	if err := o.moveTo(valueobject.OrderStatusCompleted, now); err != nil {
		return err
	}
	o.BuyerRating = &rating
	o.BuyerReview = &review
	o.CompletedAt = &now
	return nil
}

// AutoComplete закрывает заказ по истечении срока без действий покупателя.
func (o *Order) AutoComplete(now time.Time) error {
	if !o.Status.IsActive() {
		return apperror.ErrInvalidOrderStatus
	}
	if err := o.moveTo(valueobject.OrderStatusCompleted, now); err != nil {
		return err
	}
	o.CompletedAt = &now
	return nil
}

// Cancel: из Created/Accepted может любая сторона, из InProgress продавец
// всегда, покупатель только после дедлайна.
func (o *Order) Cancel(caller uuid.UUID, now time.Time) error {
	if !o.IsParty(caller) {
		return apperror.ErrNotOrderParty
	}
	switch o.Status {
	case valueobject.OrderStatusCreated, valueobject.OrderStatusAccepted:
	case valueobject.OrderStatusInProgress:
		if o.IsBuyer(caller) && !now.After(o.Deadline) {
			return apperror.ErrDeadlineNotPassed
		}
	default:
		return apperror.ErrInvalidOrderStatus
	}
	if err := o.moveTo(valueobject.OrderStatusCancelled, now); err != nil {
		return err
	}
	o.CancelledAt = &now
	return nil
}

// DisputeWindowEnd конец окна для спора после сдачи работы.
// UndeliveredReleaseAt срок автовыплаты, пока работа не сдана: дедлайн заказа
// (или now, если он прошёл) плюс период спора.
func (o *Order) UndeliveredReleaseAt(disputePeriod time.Duration, now time.Time) time.Time {
	base := o.Deadline
	if now.After(base) {
		base = now
	}
	return base.Add(disputePeriod)
}

func (o *Order) DisputeWindowEnd(disputePeriod time.Duration) (time.Time, bool) {
	if o.DeliveredAt == nil {
		return time.Time{}, false
	}
	return o.DeliveredAt.Add(disputePeriod), true
}

func (o *Order) RaiseDispute(disputePeriod time.Duration, now time.Time) error {
	if !o.Status.IsActive() {
		return apperror.ErrInvalidOrderStatus
	}
	if o.Status == valueobject.OrderStatusDelivered {
		if end, ok := o.DisputeWindowEnd(disputePeriod); ok && now.After(end) {
			return apperror.ErrDisputePeriodExpired
		}
	}
	previous := o.Status
	if err := o.moveTo(valueobject.OrderStatusDisputed, now); err != nil {
		return err
	}
	o.PreDisputeStatus = &previous
	o.DisputedAt = &now
	return nil
}

func (o *Order) AssignArbiter(arbiter uuid.UUID, now time.Time) error {
	if err := o.requireStatus(valueobject.OrderStatusDisputed); err != nil {
		return err
	}
	o.Arbiter = &arbiter
	o.UpdatedAt = now
	return nil
}

// Resolve закрывает спорный заказ решением арбитра. Доли сторон хранит спор.
func (o *Order) Resolve(now time.Time) error {
	if err := o.requireStatus(valueobject.OrderStatusDisputed); err != nil {
		return err
	}
	if err := o.moveTo(valueobject.OrderStatusResolved, now); err != nil {
		return err
	}
	o.PreDisputeStatus = nil
	o.ResolvedAt = &now
	return nil
}

// RestoreAfterDismissal возвращает заказ в статус до спора.
func (o *Order) RestoreAfterDismissal(now time.Time) error {
	if err := o.requireStatus(valueobject.OrderStatusDisputed); err != nil {
		return err
	}
	if o.PreDisputeStatus == nil {
		return apperror.ErrInvalidOrderStatus
	}
	if err := o.moveTo(*o.PreDisputeStatus, now); err != nil {
		return err
	}
	o.PreDisputeStatus = nil
	return nil
}

func (o *Order) RecordMilestoneApproved(now time.Time) error {
	if o.CompletedMilestones >= o.MilestoneCount {
		return apperror.ErrMilestoneBudgetExceeded
	}
	o.CompletedMilestones++
	o.UpdatedAt = now
	return nil
}

// LeaveReview дописывает отзыв стороны после завершения заказа. Поля
// отзывов заполняются один раз. Возвращает того, о ком отзыв.
func (o *Order) LeaveReview(reviewer uuid.UUID, rating int, comment string, now time.Time) (uuid.UUID, error) {
	if !o.IsParty(reviewer) {
		return uuid.Nil, apperror.ErrNotOrderParty
	}
	if err := o.requireStatus(valueobject.OrderStatusCompleted); err != nil {
		return uuid.Nil, err
	}
	if err := validation.ValidateRating(rating); err != nil {
		return uuid.Nil, err
	}
	if err := validation.ValidateLength("отзыв", comment, 0, validation.MaxReviewLength); err != nil {
		return uuid.Nil, err
	}

	if o.IsBuyer(reviewer) {
		if o.BuyerRating != nil {
			return uuid.Nil, apperror.ErrReviewAlreadyExists
		}
		o.BuyerRating = &rating
		o.BuyerReview = &comment
		o.UpdatedAt = now
		return o.Seller, nil
	}

	if o.SellerRating != nil {
		return uuid.Nil, apperror.ErrReviewAlreadyExists
	}
	o.SellerRating = &rating
	o.SellerReview = &comment
	o.UpdatedAt = now
	return o.Buyer, nil
}

// ProgressPercentage прогресс для отображения: по этапам, если они есть, иначе по статусу.
func (o *Order) ProgressPercentage() int {
	if o.MilestoneCount > 0 && o.Status != valueobject.OrderStatusCompleted {
		return o.CompletedMilestones * 100 / o.MilestoneCount
	}
	switch o.Status {
	case valueobject.OrderStatusAccepted:
		return 10
	case valueobject.OrderStatusInProgress:
		return 50
	case valueobject.OrderStatusDelivered:
		return 90
	case valueobject.OrderStatusCompleted:
		return 100
	}
	return 0
}
