package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
)

// Escrow удерживает оплату заказа до единственной итоговой выплаты.
// Amount это остаток на счёте эскроу, GrossAmount исходная сумма.
type Escrow struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	Buyer   uuid.UUID
	Seller  uuid.UUID
	Status  valueobject.EscrowStatus

	GrossAmount valueobject.Amount
	Amount      valueobject.Amount
	FeeRate     valueobject.BasisPoints

	PlatformFee    valueobject.Amount
	SellerNet      valueobject.Amount
	BuyerRefunded  valueobject.Amount
	ReleasedAmount valueobject.Amount

	DisputeDeadline    time.Time
	AutoReleaseEnabled bool
	Locked             bool

	FundedAt   *time.Time
	ReleasedAt *time.Time
	RefundedAt *time.Time
	UpdatedAt  time.Time
	Version    int64
}

// FundTerms параметры, которые фиксируются в эскроу при пополнении.
type FundTerms struct {
	Amount             valueobject.Amount
	FeeRate            valueobject.BasisPoints
	AutoReleaseEnabled bool
	DisputeDeadline    time.Time
}

func NewEscrow(order *Order, now time.Time) *Escrow {
	return &Escrow{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Buyer:     order.Buyer,
		Seller:    order.Seller,
		Status:    valueobject.EscrowStatusPending,
		UpdatedAt: now,
	}
}

// Fund единственное пополнение. Ставка комиссии запоминается здесь и
// больше не перечитывается из настроек.
func (e *Escrow) Fund(terms FundTerms, now time.Time) error {
	if e.FundedAt != nil || e.Status != valueobject.EscrowStatusPending {
		return apperror.ErrEscrowAlreadyFunded
	}
	if terms.Amount == 0 {
		return apperror.Validation("сумма пополнения эскроу должна быть положительной")
	}
	if !terms.FeeRate.IsValid() {
		return apperror.Validation("ставка комиссии должна быть в диапазоне 0..%d б.п.", valueobject.MaxBasisPoints)
	}

	e.GrossAmount = terms.Amount
	e.Amount = terms.Amount
	e.FeeRate = terms.FeeRate
	e.AutoReleaseEnabled = terms.AutoReleaseEnabled
	e.DisputeDeadline = terms.DisputeDeadline
	e.Status = valueobject.EscrowStatusFunded
	e.FundedAt = &now
	e.UpdatedAt = now
	return nil
}

func (e *Escrow) IsDisbursed() bool {
	return e.ReleasedAt != nil || e.RefundedAt != nil || e.Status.IsDisbursed()
}

func (e *Escrow) checkDisbursable() error {
	if e.IsDisbursed() {
		return apperror.ErrEscrowAlreadyReleased
	}
	if e.FundedAt == nil {
		return apperror.ErrEscrowNotFunded
	}
	return nil
}

func (e *Escrow) moveTo(status valueobject.EscrowStatus, now time.Time) error {
	if !e.Status.CanTransitionTo(status) {
		return apperror.ErrEscrowAlreadyReleased
	}
	e.Status = status
	e.UpdatedAt = now
	return nil
}

// Release выплачивает остаток продавцу за вычетом комиссии по зафиксированной ставке.
func (e *Escrow) Release(now time.Time) (valueobject.FeeBreakdown, error) {
	if err := e.checkDisbursable(); err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	if e.Locked {
		return valueobject.FeeBreakdown{}, apperror.ErrEscrowLocked
	}

	breakdown, err := valueobject.CalculateFee(e.Amount, e.FeeRate)
	if err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	platformFee, err := valueobject.CheckedAdd(e.PlatformFee, breakdown.Fee)
	if err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	sellerNet, err := valueobject.CheckedAdd(e.SellerNet, breakdown.Net)
	if err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	if err := e.moveTo(valueobject.EscrowStatusReleased, now); err != nil {
		return valueobject.FeeBreakdown{}, err
	}

	e.PlatformFee = platformFee
	e.SellerNet = sellerNet
	e.Amount = 0
	e.ReleasedAt = &now
	return breakdown, nil
}

// Refund возвращает покупателю весь остаток.
func (e *Escrow) Refund(now time.Time) (valueobject.Amount, error) {
	if err := e.checkDisbursable(); err != nil {
		return 0, err
	}
	if e.Locked {
		return 0, apperror.ErrEscrowLocked
	}

	refund := e.Amount
	total, err := valueobject.CheckedAdd(e.BuyerRefunded, refund)
	if err != nil {
		return 0, err
	}
	if err := e.moveTo(valueobject.EscrowStatusRefunded, now); err != nil {
		return 0, err
	}

	e.BuyerRefunded = total
	e.Amount = 0
	e.RefundedAt = &now
	return refund, nil
}

// SplitRelease распределяет остаток по решению спора. Нераспределённый
// остаток уходит платформе. Возвращает размер этого остатка.
func (e *Escrow) SplitRelease(buyerRefund, sellerPayout valueobject.Amount, now time.Time) (valueobject.Amount, error) {
	if err := e.checkDisbursable(); err != nil {
		return 0, err
	}

	total, err := valueobject.CheckedAdd(buyerRefund, sellerPayout)
	if err != nil {
		return 0, err
	}
	if total > e.Amount {
		return 0, apperror.ErrSplitExceedsEscrow
	}
	forfeited := e.Amount - total

	refunded, err := valueobject.CheckedAdd(e.BuyerRefunded, buyerRefund)
	if err != nil {
		return 0, err
	}
	sellerNet, err := valueobject.CheckedAdd(e.SellerNet, sellerPayout)
	if err != nil {
		return 0, err
	}
	platformFee, err := valueobject.CheckedAdd(e.PlatformFee, forfeited)
	if err != nil {
		return 0, err
	}
	if err := e.moveTo(valueobject.EscrowStatusSplit, now); err != nil {
		return 0, err
	}

	e.BuyerRefunded = refunded
	e.SellerNet = sellerNet
	e.PlatformFee = platformFee
	e.Amount = 0
	e.Locked = false
	// отметка ставится одна: выплата продавцу, если она была, иначе возврат
	if sellerPayout > 0 {
		e.ReleasedAt = &now
	} else {
		e.RefundedAt = &now
	}
	return forfeited, nil
}

// ReleasePartial выплачивает продавцу сумму одного этапа. Общая сумма
// частичных выплат не может превысить GrossAmount.
func (e *Escrow) ReleasePartial(amount valueobject.Amount, now time.Time) (valueobject.FeeBreakdown, error) {
	if err := e.checkDisbursable(); err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	if e.Locked {
		return valueobject.FeeBreakdown{}, apperror.ErrEscrowLocked
	}
	if amount == 0 {
		return valueobject.FeeBreakdown{}, apperror.Validation("сумма этапа должна быть положительной")
	}

	released, err := valueobject.CheckedAdd(e.ReleasedAmount, amount)
	if err != nil {
		return valueobject.FeeBreakdown{}, apperror.ErrMilestoneBudgetExceeded
	}
	if released > e.GrossAmount || amount > e.Amount {
		return valueobject.FeeBreakdown{}, apperror.ErrMilestoneBudgetExceeded
	}

	breakdown, err := valueobject.CalculateFee(amount, e.FeeRate)
	if err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	platformFee, err := valueobject.CheckedAdd(e.PlatformFee, breakdown.Fee)
	if err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	sellerNet, err := valueobject.CheckedAdd(e.SellerNet, breakdown.Net)
	if err != nil {
		return valueobject.FeeBreakdown{}, err
	}
	if err := e.moveTo(valueobject.EscrowStatusFunded, now); err != nil {
		return valueobject.FeeBreakdown{}, err
	}

	e.ReleasedAmount = released
	e.Amount -= amount
	e.PlatformFee = platformFee
	e.SellerNet = sellerNet
	return breakdown, nil
}

func (e *Escrow) Lock(now time.Time) error {
	if err := e.checkDisbursable(); err != nil {
		return err
	}
	e.Locked = true
	e.UpdatedAt = now
	return nil
}

func (e *Escrow) Unlock(now time.Time) {
	e.Locked = false
	e.UpdatedAt = now
}

// RescheduleAutoRelease переносит срок автовыплаты (после сдачи работы).
func (e *Escrow) RescheduleAutoRelease(deadline time.Time, now time.Time) {
	e.DisputeDeadline = deadline
	e.UpdatedAt = now
}

// CanAutoRelease: автовыплата включена, срок спора прошёл, средства не выплачены
// и эскроу не заблокирован спором.
func (e *Escrow) CanAutoRelease(now time.Time) bool {
	return e.AutoReleaseEnabled &&
		e.FundedAt != nil &&
		!e.Locked &&
		!e.IsDisbursed() &&
		now.After(e.DisputeDeadline)
}
