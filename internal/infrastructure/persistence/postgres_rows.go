package persistence

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
)

// numeric uint64 в колонке NUMERIC(20,0). database/sql не передаёт uint64
// со старшим битом, поэтому значение уходит строкой.
type numeric uint64

func (n numeric) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(n), 10), nil
}

func (n *numeric) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n = 0
		return nil
	case int64:
		if v < 0 {
			return fmt.Errorf("numeric: отрицательное значение %d", v)
		}
		*n = numeric(v)
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	}
	return fmt.Errorf("numeric: неподдерживаемый тип %T", src)
}

func (n *numeric) parse(s string) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("numeric: %w", err)
	}
	*n = numeric(v)
	return nil
}

type listingRow struct {
	ID                  uuid.UUID `db:"id"`
	OwnerID             uuid.UUID `db:"owner_id"`
	Title               string    `db:"title"`
	Description         string    `db:"description"`
	Price               numeric   `db:"price"`
	DeliveryTimeSeconds int64     `db:"delivery_time_seconds"`
	MaxRevisions        int       `db:"max_revisions"`
	Active              bool      `db:"active"`
	TotalOrders         numeric   `db:"total_orders"`
	CompletedOrders     numeric   `db:"completed_orders"`
	RatingSum           numeric   `db:"rating_sum"`
	RatingCount         numeric   `db:"rating_count"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
	Version             int64     `db:"version"`
}

func newListingRow(l *entity.Listing) listingRow {
	return listingRow{
		ID:                  l.ID,
		OwnerID:             l.Owner,
		Title:               l.Title,
		Description:         l.Description,
		Price:               numeric(l.Price),
		DeliveryTimeSeconds: int64(l.DeliveryTime / time.Second),
		MaxRevisions:        l.MaxRevisions,
		Active:              l.Active,
		TotalOrders:         numeric(l.TotalOrders),
		CompletedOrders:     numeric(l.CompletedOrders),
		RatingSum:           numeric(l.RatingSum),
		RatingCount:         numeric(l.RatingCount),
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
		Version:             l.Version,
	}
}

func (r listingRow) toEntity() *entity.Listing {
	return &entity.Listing{
		ID:              r.ID,
		Owner:           r.OwnerID,
		Title:           r.Title,
		Description:     r.Description,
		Price:           valueobject.Amount(r.Price),
		DeliveryTime:    time.Duration(r.DeliveryTimeSeconds) * time.Second,
		MaxRevisions:    r.MaxRevisions,
		Active:          r.Active,
		TotalOrders:     uint64(r.TotalOrders),
		CompletedOrders: uint64(r.CompletedOrders),
		RatingSum:       uint64(r.RatingSum),
		RatingCount:     uint64(r.RatingCount),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		Version:         r.Version,
	}
}

type orderRow struct {
	ID                  uuid.UUID                `db:"id"`
	ListingID           uuid.UUID                `db:"listing_id"`
	BuyerID             uuid.UUID                `db:"buyer_id"`
	SellerID            uuid.UUID                `db:"seller_id"`
	Amount              numeric                  `db:"amount"`
	Status              valueobject.OrderStatus  `db:"status"`
	Requirements        string                   `db:"requirements"`
	DeliveryNotes       string                   `db:"delivery_notes"`
	DeliveryFiles       pq.StringArray           `db:"delivery_files"`
	Deadline            time.Time                `db:"deadline"`
	RevisionCount       int                      `db:"revision_count"`
	MaxRevisions        int                      `db:"max_revisions"`
	MilestoneCount      int                      `db:"milestone_count"`
	CompletedMilestones int                      `db:"completed_milestones"`
	BuyerRating         *int                     `db:"buyer_rating"`
	BuyerReview         *string                  `db:"buyer_review"`
	SellerRating        *int                     `db:"seller_rating"`
	SellerReview        *string                  `db:"seller_review"`
	ArbiterID           *uuid.UUID               `db:"arbiter_id"`
	PreDisputeStatus    *valueobject.OrderStatus `db:"pre_dispute_status"`
	CreatedAt           time.Time                `db:"created_at"`
	AcceptedAt          *time.Time               `db:"accepted_at"`
	StartedAt           *time.Time               `db:"started_at"`
	DeliveredAt         *time.Time               `db:"delivered_at"`
	CompletedAt         *time.Time               `db:"completed_at"`
	CancelledAt         *time.Time               `db:"cancelled_at"`
	DisputedAt          *time.Time               `db:"disputed_at"`
	ResolvedAt          *time.Time               `db:"resolved_at"`
	UpdatedAt           time.Time                `db:"updated_at"`
	Version             int64                    `db:"version"`
}

func newOrderRow(o *entity.Order) orderRow {
	return orderRow{
		ID:                  o.ID,
		ListingID:           o.ListingID,
		BuyerID:             o.Buyer,
		SellerID:            o.Seller,
		Amount:              numeric(o.Amount),
		Status:              o.Status,
		Requirements:        o.Requirements,
		DeliveryNotes:       o.DeliveryNotes,
		DeliveryFiles:       pq.StringArray(o.DeliveryFiles),
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
		PreDisputeStatus:    o.PreDisputeStatus,
		CreatedAt:           o.CreatedAt,
		AcceptedAt:          o.AcceptedAt,
		StartedAt:           o.StartedAt,
		DeliveredAt:         o.DeliveredAt,
		CompletedAt:         o.CompletedAt,
		CancelledAt:         o.CancelledAt,
		DisputedAt:          o.DisputedAt,
		ResolvedAt:          o.ResolvedAt,
		UpdatedAt:           o.UpdatedAt,
		Version:             o.Version,
	}
}

func (r orderRow) toEntity() *entity.Order {
	var files []string
	if len(r.DeliveryFiles) > 0 {
		files = []string(r.DeliveryFiles)
	}
	return &entity.Order{
		ID:                  r.ID,
		ListingID:           r.ListingID,
		Buyer:               r.BuyerID,
		Seller:              r.SellerID,
		Amount:              valueobject.Amount(r.Amount),
		Status:              r.Status,
		Requirements:        r.Requirements,
		DeliveryNotes:       r.DeliveryNotes,
		DeliveryFiles:       files,
		Deadline:            r.Deadline.UTC(),
		RevisionCount:       r.RevisionCount,
		MaxRevisions:        r.MaxRevisions,
		MilestoneCount:      r.MilestoneCount,
		CompletedMilestones: r.CompletedMilestones,
		BuyerRating:         r.BuyerRating,
		BuyerReview:         r.BuyerReview,
		SellerRating:        r.SellerRating,
		SellerReview:        r.SellerReview,
		Arbiter:             r.ArbiterID,
		PreDisputeStatus:    r.PreDisputeStatus,
		CreatedAt:           r.CreatedAt.UTC(),
		AcceptedAt:          utcPtr(r.AcceptedAt),
		StartedAt:           utcPtr(r.StartedAt),
		DeliveredAt:         utcPtr(r.DeliveredAt),
		CompletedAt:         utcPtr(r.CompletedAt),
		CancelledAt:         utcPtr(r.CancelledAt),
		DisputedAt:          utcPtr(r.DisputedAt),
		ResolvedAt:          utcPtr(r.ResolvedAt),
		UpdatedAt:           r.UpdatedAt.UTC(),
		Version:             r.Version,
	}
}

type escrowRow struct {
	ID                 uuid.UUID                `db:"id"`
	OrderID            uuid.UUID                `db:"order_id"`
	BuyerID            uuid.UUID                `db:"buyer_id"`
	SellerID           uuid.UUID                `db:"seller_id"`
	Status             valueobject.EscrowStatus `db:"status"`
	GrossAmount        numeric                  `db:"gross_amount"`
	Amount             numeric                  `db:"amount"`
	FeeRateBps         int                      `db:"fee_rate_bps"`
	PlatformFee        numeric                  `db:"platform_fee"`
	SellerNet          numeric                  `db:"seller_net"`
	BuyerRefunded      numeric                  `db:"buyer_refunded"`
	ReleasedAmount     numeric                  `db:"released_amount"`
	DisputeDeadline    time.Time                `db:"dispute_deadline"`
	AutoReleaseEnabled bool                     `db:"auto_release_enabled"`
	Locked             bool                     `db:"locked"`
	FundedAt           *time.Time               `db:"funded_at"`
	ReleasedAt         *time.Time               `db:"released_at"`
	RefundedAt         *time.Time               `db:"refunded_at"`
	UpdatedAt          time.Time                `db:"updated_at"`
	Version            int64                    `db:"version"`
}

func newEscrowRow(e *entity.Escrow) escrowRow {
	return escrowRow{
		ID:                 e.ID,
		OrderID:            e.OrderID,
		BuyerID:            e.Buyer,
		SellerID:           e.Seller,
		Status:             e.Status,
		GrossAmount:        numeric(e.GrossAmount),
		Amount:             numeric(e.Amount),
		FeeRateBps:         int(e.FeeRate),
		PlatformFee:        numeric(e.PlatformFee),
		SellerNet:          numeric(e.SellerNet),
		BuyerRefunded:      numeric(e.BuyerRefunded),
		ReleasedAmount:     numeric(e.ReleasedAmount),
		DisputeDeadline:    e.DisputeDeadline,
		AutoReleaseEnabled: e.AutoReleaseEnabled,
		Locked:             e.Locked,
		FundedAt:           e.FundedAt,
		ReleasedAt:         e.ReleasedAt,
		RefundedAt:         e.RefundedAt,
		UpdatedAt:          e.UpdatedAt,
		Version:            e.Version,
	}
}

func (r escrowRow) toEntity() *entity.Escrow {
	return &entity.Escrow{
		ID:                 r.ID,
		OrderID:            r.OrderID,
		Buyer:              r.BuyerID,
		Seller:             r.SellerID,
		Status:             r.Status,
		GrossAmount:        valueobject.Amount(r.GrossAmount),
		Amount:             valueobject.Amount(r.Amount),
		FeeRate:            valueobject.BasisPoints(r.FeeRateBps),
		PlatformFee:        valueobject.Amount(r.PlatformFee),
		SellerNet:          valueobject.Amount(r.SellerNet),
		BuyerRefunded:      valueobject.Amount(r.BuyerRefunded),
		ReleasedAmount:     valueobject.Amount(r.ReleasedAmount),
		DisputeDeadline:    r.DisputeDeadline.UTC(),
		AutoReleaseEnabled: r.AutoReleaseEnabled,
		Locked:             r.Locked,
		FundedAt:           utcPtr(r.FundedAt),
		ReleasedAt:         utcPtr(r.ReleasedAt),
		RefundedAt:         utcPtr(r.RefundedAt),
		UpdatedAt:          r.UpdatedAt.UTC(),
		Version:            r.Version,
	}
}

type disputeRow struct {
	ID                uuid.UUID                 `db:"id"`
	OrderID           uuid.UUID                 `db:"order_id"`
	RaisedBy          uuid.UUID                 `db:"raised_by"`
	Reason            string                    `db:"reason"`
	Description       string                    `db:"description"`
	Evidence          pq.StringArray            `db:"evidence"`
	Status            valueobject.DisputeStatus `db:"status"`
	ArbiterID         *uuid.UUID                `db:"arbiter_id"`
	Resolution        *string                   `db:"resolution"`
	RefundPercentage  *int                      `db:"refund_percentage"`
	BuyerRefund       numeric                   `db:"buyer_refund"`
	SellerPayout      numeric                   `db:"seller_payout"`
	PlatformFeeRefund numeric                   `db:"platform_fee_refund"`
	OpenedAt          time.Time                 `db:"opened_at"`
	ReviewStartedAt   *time.Time                `db:"review_started_at"`
	ResolvedAt        *time.Time                `db:"resolved_at"`
	UpdatedAt         time.Time                 `db:"updated_at"`
	Version           int64                     `db:"version"`
}

func newDisputeRow(d *entity.Dispute) disputeRow {
	var pct *int
	if d.RefundPercentage != nil {
		v := int(*d.RefundPercentage)
		pct = &v
	}
	return disputeRow{
		ID:                d.ID,
		OrderID:           d.OrderID,
		RaisedBy:          d.RaisedBy,
		Reason:            d.Reason,
		Description:       d.Description,
		Evidence:          pq.StringArray(d.Evidence),
		Status:            d.Status,
		ArbiterID:         d.Arbiter,
		Resolution:        d.Resolution,
		RefundPercentage:  pct,
		BuyerRefund:       numeric(d.BuyerRefund),
		SellerPayout:      numeric(d.SellerPayout),
		PlatformFeeRefund: numeric(d.PlatformFeeRefund),
		OpenedAt:          d.OpenedAt,
		ReviewStartedAt:   d.ReviewStartedAt,
		ResolvedAt:        d.ResolvedAt,
		UpdatedAt:         d.UpdatedAt,
		Version:           d.Version,
	}
}

func (r disputeRow) toEntity() *entity.Dispute {
	var pct *uint8
	if r.RefundPercentage != nil {
		v := uint8(*r.RefundPercentage)
		pct = &v
	}
	var evidence []string
	if len(r.Evidence) > 0 {
		evidence = []string(r.Evidence)
	}
	return &entity.Dispute{
		ID:                r.ID,
		OrderID:           r.OrderID,
		RaisedBy:          r.RaisedBy,
		Reason:            r.Reason,
		Description:       r.Description,
		Evidence:          evidence,
		Status:            r.Status,
		Arbiter:           r.ArbiterID,
		Resolution:        r.Resolution,
		RefundPercentage:  pct,
		BuyerRefund:       valueobject.Amount(r.BuyerRefund),
		SellerPayout:      valueobject.Amount(r.SellerPayout),
		PlatformFeeRefund: valueobject.Amount(r.PlatformFeeRefund),
		OpenedAt:          r.OpenedAt.UTC(),
		ReviewStartedAt:   utcPtr(r.ReviewStartedAt),
		ResolvedAt:        utcPtr(r.ResolvedAt),
		UpdatedAt:         r.UpdatedAt.UTC(),
		Version:           r.Version,
	}
}

type milestoneRow struct {
	ID              uuid.UUID                   `db:"id"`
	OrderID         uuid.UUID                   `db:"order_id"`
	Position        int                         `db:"position"`
	Title           string                      `db:"title"`
	Description     string                      `db:"description"`
	Amount          numeric                     `db:"amount"`
	Status          valueobject.MilestoneStatus `db:"status"`
	DueDate         time.Time                   `db:"due_date"`
	Deliverable     *string                     `db:"deliverable"`
	RejectionReason *string                     `db:"rejection_reason"`
	StartedAt       *time.Time                  `db:"started_at"`
	SubmittedAt     *time.Time                  `db:"submitted_at"`
	ApprovedAt      *time.Time                  `db:"approved_at"`
	CreatedAt       time.Time                   `db:"created_at"`
	UpdatedAt       time.Time                   `db:"updated_at"`
	Version         int64                       `db:"version"`
}

func newMilestoneRow(m *entity.Milestone) milestoneRow {
	return milestoneRow{
		ID:              m.ID,
		OrderID:         m.OrderID,
		Position:        m.Position,
		Title:           m.Title,
		Description:     m.Description,
		Amount:          numeric(m.Amount),
		Status:          m.Status,
		DueDate:         m.DueDate,
		Deliverable:     m.Deliverable,
		RejectionReason: m.RejectionReason,
		StartedAt:       m.StartedAt,
		SubmittedAt:     m.SubmittedAt,
		ApprovedAt:      m.ApprovedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		Version:         m.Version,
	}
}

func (r milestoneRow) toEntity() *entity.Milestone {
	return &entity.Milestone{
		ID:              r.ID,
		OrderID:         r.OrderID,
		Position:        r.Position,
		Title:           r.Title,
		Description:     r.Description,
		Amount:          valueobject.Amount(r.Amount),
		Status:          r.Status,
		DueDate:         r.DueDate.UTC(),
		Deliverable:     r.Deliverable,
		RejectionReason: r.RejectionReason,
		StartedAt:       utcPtr(r.StartedAt),
		SubmittedAt:     utcPtr(r.SubmittedAt),
		ApprovedAt:      utcPtr(r.ApprovedAt),
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		Version:         r.Version,
	}
}

type reviewRow struct {
	ID         uuid.UUID `db:"id"`
	OrderID    uuid.UUID `db:"order_id"`
	ReviewerID uuid.UUID `db:"reviewer_id"`
	RevieweeID uuid.UUID `db:"reviewee_id"`
	Rating     int       `db:"rating"`
	Comment    string    `db:"comment"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r reviewRow) toEntity() *entity.Review {
	return &entity.Review{
		ID:        r.ID,
		OrderID:   r.OrderID,
		Reviewer:  r.ReviewerID,
		Reviewee:  r.RevieweeID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type profileRow struct {
	UserID          uuid.UUID `db:"user_id"`
	CompletedOrders numeric   `db:"completed_orders"`
	TotalReviews    numeric   `db:"total_reviews"`
	RatingSum       numeric   `db:"rating_sum"`
	AverageRating   int64     `db:"average_rating"`
	TotalEarnings   numeric   `db:"total_earnings"`
	UpdatedAt       time.Time `db:"updated_at"`
	Version         int64     `db:"version"`
}

func newProfileRow(p *entity.Profile) profileRow {
	return profileRow{
		UserID:          p.UserID,
		CompletedOrders: numeric(p.CompletedOrders),
		TotalReviews:    numeric(p.TotalReviews),
		RatingSum:       numeric(p.RatingSum),
		AverageRating:   int64(p.AverageRating),
		TotalEarnings:   numeric(p.TotalEarnings),
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}
}

func (r profileRow) toEntity() *entity.Profile {
	return &entity.Profile{
		UserID:          r.UserID,
		CompletedOrders: uint64(r.CompletedOrders),
		TotalReviews:    uint64(r.TotalReviews),
		RatingSum:       uint64(r.RatingSum),
		AverageRating:   uint32(r.AverageRating),
		TotalEarnings:   valueobject.Amount(r.TotalEarnings),
		UpdatedAt:       r.UpdatedAt.UTC(),
		Version:         r.Version,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
