package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
)

type OpenDisputeRequest struct {
	Reason      string   `json:"reason" binding:"required"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
}

type AssignArbiterRequest struct {
	// пусто: арбитром назначается вызывающий
	ArbiterID string `json:"arbiter_id" binding:"omitempty,uuid"`
}

type ResolveDisputeRequest struct {
	RefundPercentage *uint8 `json:"refund_percentage" binding:"required,max=100"`
	Resolution       string `json:"resolution" binding:"required"`
}

type DismissDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

type DisputeResponse struct {
	ID                uuid.UUID  `json:"id"`
	OrderID           uuid.UUID  `json:"order_id"`
	RaisedBy          uuid.UUID  `json:"raised_by"`
	Reason            string     `json:"reason"`
	Description       string     `json:"description"`
	Evidence          []string   `json:"evidence"`
	Status            string     `json:"status"`
	ArbiterID         *uuid.UUID `json:"arbiter_id,omitempty"`
	Resolution        *string    `json:"resolution,omitempty"`
	RefundPercentage  *uint8     `json:"refund_percentage,omitempty"`
	BuyerRefund       uint64     `json:"buyer_refund"`
	SellerPayout      uint64     `json:"seller_payout"`
	PlatformFeeRefund uint64     `json:"platform_fee_refund"`
	OpenedAt          time.Time  `json:"opened_at"`
	ReviewStartedAt   *time.Time `json:"review_started_at,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

func ToDisputeResponse(d *entity.Dispute) *DisputeResponse {
	if d == nil {
		return nil
	}
	evidence := d.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	return &DisputeResponse{
		ID:                d.ID,
		OrderID:           d.OrderID,
		RaisedBy:          d.RaisedBy,
		Reason:            d.Reason,
		Description:       d.Description,
		Evidence:          evidence,
		Status:            string(d.Status),
		ArbiterID:         d.Arbiter,
		Resolution:        d.Resolution,
		RefundPercentage:  d.RefundPercentage,
		BuyerRefund:       uint64(d.BuyerRefund),
		SellerPayout:      uint64(d.SellerPayout),
		PlatformFeeRefund: uint64(d.PlatformFeeRefund),
		OpenedAt:          d.OpenedAt,
		ReviewStartedAt:   d.ReviewStartedAt,
		ResolvedAt:        d.ResolvedAt,
	}
}

type DisputeOutcomeResponse struct {
	Order     OrderResponse    `json:"order"`
	Escrow    *EscrowResponse  `json:"escrow"`
	Dispute   *DisputeResponse `json:"dispute"`
	Forfeited uint64           `json:"forfeited,omitempty"`
}
