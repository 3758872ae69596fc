package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/validation"
)

type Dispute struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	RaisedBy    uuid.UUID
	Reason      string
	Description string
	Evidence    []string
	Status      valueobject.DisputeStatus
	Arbiter     *uuid.UUID
	Resolution  *string

	RefundPercentage  *uint8
	BuyerRefund       valueobject.Amount
	SellerPayout      valueobject.Amount
	PlatformFeeRefund valueobject.Amount

	OpenedAt        time.Time
	ReviewStartedAt *time.Time
	ResolvedAt      *time.Time
	UpdatedAt       time.Time
	Version         int64
}

// DisputeOutcome денежный итог решения по спору.
type DisputeOutcome struct {
	RefundPercentage  uint8
	BuyerRefund       valueobject.Amount
	SellerPayout      valueobject.Amount
	PlatformFeeRefund valueobject.Amount
}

func NewDispute(order *Order, initiator uuid.UUID, reason, description string, evidence []string, now time.Time) (*Dispute, error) {
	if !order.IsParty(initiator) {
		return nil, apperror.ErrNotOrderParty
	}
	if err := validation.ValidateLength("причина спора", reason, validation.MinDisputeReasonLength, validation.MaxDisputeReasonLength); err != nil {
		return nil, err
	}
	if err := validation.ValidateLength("описание спора", description, 0, validation.MaxDisputeDescriptionLength); err != nil {
		return nil, err
	}
	if err := validation.ValidateRefs("доказательства", evidence); err != nil {
		return nil, err
	}

	return &Dispute{
		ID:          uuid.New(),
		OrderID:     order.ID,
		RaisedBy:    initiator,
		Reason:      reason,
		Description: description,
		Evidence:    append([]string(nil), evidence...),
		Status:      valueobject.DisputeStatusOpen,
		OpenedAt:    now,
		UpdatedAt:   now,
	}, nil
}

func (d *Dispute) moveTo(status valueobject.DisputeStatus, now time.Time) error {
	if !d.Status.CanTransitionTo(status) {
		return apperror.ErrInvalidDisputeStatus
	}
	d.Status = status
	d.UpdatedAt = now
	return nil
}

func (d *Dispute) AssignArbiter(arbiter uuid.UUID, now time.Time) error {
	if arbiter == uuid.Nil {
		return apperror.Validation("арбитр обязателен")
	}
	if err := d.moveTo(valueobject.DisputeStatusUnderReview, now); err != nil {
		return err
	}
	d.Arbiter = &arbiter
	d.ReviewStartedAt = &now
	return nil
}

// CanBeDecidedBy решение принимает назначенный арбитр, а до назначения любой арбитр или админ.
func (d *Dispute) CanBeDecidedBy(userID uuid.UUID, role valueobject.Role) bool {
	if role == valueobject.RoleAdmin {
		return true
	}
	if !role.CanArbitrate() {
		return false
	}
	return d.Arbiter == nil || *d.Arbiter == userID
}

// CheckResolvable проверка статуса до расчёта сумм.
func (d *Dispute) CheckResolvable() error {
	if !d.Status.CanTransitionTo(valueobject.DisputeStatusResolved) {
		return apperror.ErrInvalidDisputeStatus
	}
	return nil
}

func (d *Dispute) Resolve(resolution string, outcome DisputeOutcome, now time.Time) error {
	if err := validation.ValidateNonEmpty("решение", resolution); err != nil {
		return err
	}
	if err := validation.ValidateLength("решение", resolution, 0, validation.MaxResolutionLength); err != nil {
		return err
	}
	if err := d.moveTo(valueobject.DisputeStatusResolved, now); err != nil {
		return err
	}
	pct := outcome.RefundPercentage
	d.RefundPercentage = &pct
	d.BuyerRefund = outcome.BuyerRefund
	d.SellerPayout = outcome.SellerPayout
	d.PlatformFeeRefund = outcome.PlatformFeeRefund
	d.Resolution = &resolution
	d.ResolvedAt = &now
	return nil
}

func (d *Dispute) Dismiss(resolution string, now time.Time) error {
	if err := validation.ValidateLength("решение", resolution, 0, validation.MaxResolutionLength); err != nil {
		return err
	}
	if err := d.moveTo(valueobject.DisputeStatusDismissed, now); err != nil {
		return err
	}
	d.Resolution = &resolution
	d.ResolvedAt = &now
	return nil
}
