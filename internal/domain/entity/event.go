package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
)

type EventType string

const (
	EventOrderCreated           EventType = "order.created"
	EventOrderAccepted          EventType = "order.accepted"
	EventOrderStarted           EventType = "order.started"
	EventOrderDelivered         EventType = "order.delivered"
	EventOrderRevisionRequested EventType = "order.revision_requested"
	EventOrderCompleted         EventType = "order.completed"
	EventOrderAutoReleased      EventType = "order.auto_released"
	EventOrderCancelled         EventType = "order.cancelled"
	EventOrderDisputed          EventType = "order.disputed"

	EventDisputeArbiterAssigned EventType = "dispute.arbiter_assigned"
	EventDisputeResolved        EventType = "dispute.resolved"
	EventDisputeDismissed       EventType = "dispute.dismissed"

	EventMilestoneStarted   EventType = "milestone.started"
	EventMilestoneSubmitted EventType = "milestone.submitted"
	EventMilestoneApproved  EventType = "milestone.approved"
	EventMilestoneRejected  EventType = "milestone.rejected"

	EventReviewLeft         EventType = "review.left"
	EventListingCreated     EventType = "listing.created"
	EventListingUpdated     EventType = "listing.updated"
	EventListingDeactivated EventType = "listing.deactivated"
	EventWalletDeposited    EventType = "wallet.deposited"
)

// Event доменное событие, публикуется после фиксации транзакции.
type Event struct {
	ID           uuid.UUID          `json:"id"`
	Type         EventType          `json:"type"`
	Key          uuid.UUID          `json:"key"`
	OrderID      *uuid.UUID         `json:"order_id,omitempty"`
	Buyer        uuid.UUID          `json:"buyer"`
	Seller       uuid.UUID          `json:"seller"`
	Amount       valueobject.Amount `json:"amount"`
	PlatformFee  valueobject.Amount `json:"platform_fee,omitempty"`
	BuyerRefund  valueobject.Amount `json:"buyer_refund,omitempty"`
	SellerPayout valueobject.Amount `json:"seller_payout,omitempty"`
	Status       string             `json:"status,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// NewOrderEvent событие по заказу с суммой заказа и текущим статусом.
func NewOrderEvent(t EventType, order *Order, now time.Time) Event {
	orderID := order.ID
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Key:        order.ID,
		OrderID:    &orderID,
		Buyer:      order.Buyer,
		Seller:     order.Seller,
		Amount:     order.Amount,
		Status:     string(order.Status),
		OccurredAt: now,
	}
}

func NewListingEvent(t EventType, listing *Listing, now time.Time) Event {
	status := "active"
	if !listing.Active {
		status = "inactive"
	}
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Key:        listing.ID,
		Seller:     listing.Owner,
		Amount:     listing.Price,
		Status:     status,
		OccurredAt: now,
	}
}

// NewWalletEvent пополнение счёта. Получатель события сам владелец счёта.
func NewWalletEvent(account uuid.UUID, amount valueobject.Amount, now time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       EventWalletDeposited,
		Key:        account,
		Buyer:      account,
		Amount:     amount,
		OccurredAt: now,
	}
}

// Recipients пользователи, которым событие доставляется напрямую.
func (e Event) Recipients() []uuid.UUID {
	var out []uuid.UUID
	if e.Buyer != uuid.Nil {
		out = append(out, e.Buyer)
	}
	if e.Seller != uuid.Nil && e.Seller != e.Buyer {
		out = append(out, e.Seller)
	}
	return out
}
