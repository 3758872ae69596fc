package valueobject

import "github.com/ignatzorin/escrow-market/internal/pkg/apperror"

type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "created"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusDisputed   OrderStatus = "disputed"
	OrderStatusResolved   OrderStatus = "resolved"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated:    {OrderStatusAccepted, OrderStatusCancelled},
	OrderStatusAccepted:   {OrderStatusInProgress, OrderStatusDelivered, OrderStatusCancelled, OrderStatusDisputed, OrderStatusCompleted},
	OrderStatusInProgress: {OrderStatusDelivered, OrderStatusCancelled, OrderStatusDisputed, OrderStatusCompleted},
	OrderStatusDelivered:  {OrderStatusCompleted, OrderStatusInProgress, OrderStatusDisputed},
	OrderStatusDisputed:   {OrderStatusResolved, OrderStatusRefunded, OrderStatusAccepted, OrderStatusInProgress, OrderStatusDelivered},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
	OrderStatusResolved:   {},
	OrderStatusRefunded:   {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	return contains(orderTransitions[s], newStatus)
}

// IsTerminal в этих статусах у заказа меняются только поля отзывов.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusResolved, OrderStatusRefunded:
		return true
	}
	return false
}

// IsActive заказ в работе: по нему можно открыть спор или сработать автовыплате.
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusAccepted, OrderStatusInProgress, OrderStatusDelivered:
		return true
	}
	return false
}

func NewOrderStatus(status string) (OrderStatus, error) {
	s := OrderStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заказа")
	}
	return s, nil
}

type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusFunded   EscrowStatus = "funded"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
	EscrowStatusSplit    EscrowStatus = "split"
)

var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusPending:  {EscrowStatusFunded},
	// funded -> funded: частичная выплата по этапу
	EscrowStatusFunded:   {EscrowStatusFunded, EscrowStatusReleased, EscrowStatusRefunded, EscrowStatusSplit},
	EscrowStatusReleased: {},
	EscrowStatusRefunded: {},
	EscrowStatusSplit:    {},
}

func (s EscrowStatus) IsValid() bool {
	_, ok := escrowTransitions[s]
	return ok
}

func (s EscrowStatus) CanTransitionTo(newStatus EscrowStatus) bool {
	return contains(escrowTransitions[s], newStatus)
}

func (s EscrowStatus) IsDisbursed() bool {
	return s == EscrowStatusReleased || s == EscrowStatusRefunded || s == EscrowStatusSplit
}

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusDismissed   DisputeStatus = "dismissed"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen:        {DisputeStatusUnderReview, DisputeStatusResolved, DisputeStatusDismissed},
	DisputeStatusUnderReview: {DisputeStatusResolved, DisputeStatusDismissed},
	DisputeStatusResolved:    {},
	DisputeStatusDismissed:   {},
}

func (s DisputeStatus) IsValid() bool {
	_, ok := disputeTransitions[s]
	return ok
}

func (s DisputeStatus) CanTransitionTo(newStatus DisputeStatus) bool {
	return contains(disputeTransitions[s], newStatus)
}

func (s DisputeStatus) IsClosed() bool {
	return s == DisputeStatusResolved || s == DisputeStatusDismissed
}

type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusSubmitted  MilestoneStatus = "submitted"
	MilestoneStatusApproved   MilestoneStatus = "approved"
	MilestoneStatusRejected   MilestoneStatus = "rejected"
)

var milestoneTransitions = map[MilestoneStatus][]MilestoneStatus{
	MilestoneStatusPending:    {MilestoneStatusInProgress},
	MilestoneStatusInProgress: {MilestoneStatusSubmitted},
	MilestoneStatusSubmitted:  {MilestoneStatusApproved, MilestoneStatusRejected},
	MilestoneStatusRejected:   {MilestoneStatusInProgress},
	MilestoneStatusApproved:   {},
}

func (s MilestoneStatus) IsValid() bool {
	_, ok := milestoneTransitions[s]
	return ok
}

func (s MilestoneStatus) CanTransitionTo(newStatus MilestoneStatus) bool {
	return contains(milestoneTransitions[s], newStatus)
}

// Role роль пользователя в токене.
type Role string

const (
	RoleBuyer   Role = "buyer"
	RoleSeller  Role = "seller"
	RoleArbiter Role = "arbiter"
	RoleAdmin   Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleArbiter, RoleAdmin:
		return true
	}
	return false
}

// CanArbitrate может ли роль разбирать споры.
func (r Role) CanArbitrate() bool {
	return r == RoleArbiter || r == RoleAdmin
}

func contains[T comparable](allowed []T, v T) bool {
	for _, s := range allowed {
		if s == v {
			return true
		}
	}
	return false
}
