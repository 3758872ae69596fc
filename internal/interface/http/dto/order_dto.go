package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
)

type CreateOrderRequest struct {
	ListingID    string                 `json:"listing_id" binding:"required,uuid"`
	Requirements string                 `json:"requirements" binding:"max=5000"`
	Milestones   []MilestonePlanRequest `json:"milestones" binding:"omitempty,dive"`
}

type MilestonePlanRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Amount      uint64    `json:"amount" binding:"required,gt=0"`
	DueDate     time.Time `json:"due_date" binding:"required"`
}

func (r MilestonePlanRequest) ToPlan() entity.MilestonePlan {
	return entity.MilestonePlan{
		Title:       r.Title,
		Description: r.Description,
		Amount:      valueobject.Amount(r.Amount),
		DueDate:     r.DueDate.UTC(),
	}
}

type DeliverOrderRequest struct {
	Notes string   `json:"notes" binding:"required"`
	Files []string `json:"files"`
}

type CompleteOrderRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Review string `json:"review"`
}

type LeaveReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type OrderResponse struct {
	ID                  uuid.UUID  `json:"id"`
	ListingID           uuid.UUID  `json:"listing_id"`
	BuyerID             uuid.UUID  `json:"buyer_id"`
	SellerID            uuid.UUID  `json:"seller_id"`
	Amount              uint64     `json:"amount"`
	Status              string     `json:"status"`
	Requirements        string     `json:"requirements"`
	DeliveryNotes       string     `json:"delivery_notes,omitempty"`
	DeliveryFiles       []string   `json:"delivery_files,omitempty"`
	Deadline            time.Time  `json:"deadline"`
	RevisionCount       int        `json:"revision_count"`
	MaxRevisions        int        `json:"max_revisions"`
	MilestoneCount      int        `json:"milestone_count"`
	CompletedMilestones int        `json:"completed_milestones"`
	BuyerRating         *int       `json:"buyer_rating,omitempty"`
	BuyerReview         *string    `json:"buyer_review,omitempty"`
	SellerRating        *int       `json:"seller_rating,omitempty"`
	SellerReview        *string    `json:"seller_review,omitempty"`
	ArbiterID           *uuid.UUID `json:"arbiter_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	AcceptedAt          *time.Time `json:"accepted_at,omitempty"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	DeliveredAt         *time.Time `json:"delivered_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	DisputedAt          *time.Time `json:"disputed_at,omitempty"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func ToOrderResponse(o *entity.Order) OrderResponse {
	return OrderResponse{
		ID:                  o.ID,
		ListingID:           o.ListingID,
		BuyerID:             o.Buyer,
		SellerID:            o.Seller,
		Amount:              uint64(o.Amount),
		Status:              string(o.Status),
		Requirements:        o.Requirements,
		DeliveryNotes:       o.DeliveryNotes,
		DeliveryFiles:       o.DeliveryFiles,
		Deadline:            o.Deadline,
		RevisionCount:       o.RevisionCount,
		MaxRevisions:        o.MaxRevisions,
		MilestoneCount:      o.MilestoneCount,
		CompletedMilestones: o.CompletedMilestones,
		BuyerRating:         o.BuyerRating,
		BuyerReview:         o.BuyerReview,
		SellerRating:        o.SellerRating,
		SellerReview:        o.SellerReview,
		ArbiterID:           o.Arbiter,
		CreatedAt:           o.CreatedAt,
		AcceptedAt:          o.AcceptedAt,
		StartedAt:           o.StartedAt,
		DeliveredAt:         o.DeliveredAt,
		CompletedAt:         o.CompletedAt,
		CancelledAt:         o.CancelledAt,
		DisputedAt:          o.DisputedAt,
		ResolvedAt:          o.ResolvedAt,
		UpdatedAt:           o.UpdatedAt,
	}
}

func ToOrderResponses(orders []*entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToOrderResponse(o))
	}
	return out
}

type EscrowResponse struct {
	ID                 uuid.UUID  `json:"id"`
	OrderID            uuid.UUID  `json:"order_id"`
	Status             string     `json:"status"`
	GrossAmount        uint64     `json:"gross_amount"`
	Amount             uint64     `json:"amount"`
	FeeRateBps         uint16     `json:"fee_rate_bps"`
	PlatformFee        uint64     `json:"platform_fee"`
	SellerNet          uint64     `json:"seller_net"`
	BuyerRefunded      uint64     `json:"buyer_refunded"`
	ReleasedAmount     uint64     `json:"released_amount"`
	DisputeDeadline    time.Time  `json:"dispute_deadline"`
	AutoReleaseEnabled bool       `json:"auto_release_enabled"`
	Locked             bool       `json:"locked"`
	FundedAt           *time.Time `json:"funded_at,omitempty"`
	ReleasedAt         *time.Time `json:"released_at,omitempty"`
	RefundedAt         *time.Time `json:"refunded_at,omitempty"`
}

func ToEscrowResponse(e *entity.Escrow) *EscrowResponse {
	if e == nil {
		return nil
	}
	return &EscrowResponse{
		ID:                 e.ID,
		OrderID:            e.OrderID,
		Status:             string(e.Status),
		GrossAmount:        uint64(e.GrossAmount),
		Amount:             uint64(e.Amount),
		FeeRateBps:         uint16(e.FeeRate),
		PlatformFee:        uint64(e.PlatformFee),
		SellerNet:          uint64(e.SellerNet),
		BuyerRefunded:      uint64(e.BuyerRefunded),
		ReleasedAmount:     uint64(e.ReleasedAmount),
		DisputeDeadline:    e.DisputeDeadline,
		AutoReleaseEnabled: e.AutoReleaseEnabled,
		Locked:             e.Locked,
		FundedAt:           e.FundedAt,
		ReleasedAt:         e.ReleasedAt,
		RefundedAt:         e.RefundedAt,
	}
}

type PayoutResponse struct {
	Gross       uint64 `json:"gross"`
	PlatformFee uint64 `json:"platform_fee"`
	Net         uint64 `json:"net"`
}

func ToPayoutResponse(b valueobject.FeeBreakdown) PayoutResponse {
	return PayoutResponse{Gross: uint64(b.Gross), PlatformFee: uint64(b.Fee), Net: uint64(b.Net)}
}

type OrderWithEscrowResponse struct {
	Order      OrderResponse       `json:"order"`
	Escrow     *EscrowResponse     `json:"escrow,omitempty"`
	Milestones []MilestoneResponse `json:"milestones,omitempty"`
	Payout     *PayoutResponse     `json:"payout,omitempty"`
}

type OrderDetailsResponse struct {
	Order      OrderResponse       `json:"order"`
	Escrow     *EscrowResponse     `json:"escrow"`
	Dispute    *DisputeResponse    `json:"dispute,omitempty"`
	Milestones []MilestoneResponse `json:"milestones"`
	Reviews    []ReviewResponse    `json:"reviews"`
}

type AutoReleaseResponse struct {
	Released bool            `json:"released"`
	Order    OrderResponse   `json:"order"`
	Escrow   *EscrowResponse `json:"escrow"`
	Payout   *PayoutResponse `json:"payout,omitempty"`
}

type ReviewResponse struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	ReviewerID uuid.UUID `json:"reviewer_id"`
	RevieweeID uuid.UUID `json:"reviewee_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

func ToReviewResponse(r *entity.Review) ReviewResponse {
	return ReviewResponse{
		ID:         r.ID,
		OrderID:    r.OrderID,
		ReviewerID: r.Reviewer,
		RevieweeID: r.Reviewee,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}
