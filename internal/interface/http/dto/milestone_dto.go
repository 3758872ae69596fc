package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
)

type SubmitMilestoneRequest struct {
	Deliverable string `json:"deliverable" binding:"required"`
}

type RejectMilestoneRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type MilestoneResponse struct {
	ID              uuid.UUID  `json:"id"`
	OrderID         uuid.UUID  `json:"order_id"`
	Position        int        `json:"position"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Amount          uint64     `json:"amount"`
	Status          string     `json:"status"`
	DueDate         time.Time  `json:"due_date"`
	Deliverable     *string    `json:"deliverable,omitempty"`
	RejectionReason *string    `json:"rejection_reason,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
}

func ToMilestoneResponse(m *entity.Milestone) MilestoneResponse {
	return MilestoneResponse{
		ID:              m.ID,
		OrderID:         m.OrderID,
		Position:        m.Position,
		Title:           m.Title,
		Description:     m.Description,
		Amount:          uint64(m.Amount),
		Status:          string(m.Status),
		DueDate:         m.DueDate,
		Deliverable:     m.Deliverable,
		RejectionReason: m.RejectionReason,
		StartedAt:       m.StartedAt,
		SubmittedAt:     m.SubmittedAt,
		ApprovedAt:      m.ApprovedAt,
	}
}

func ToMilestoneResponses(ms []*entity.Milestone) []MilestoneResponse {
	out := make([]MilestoneResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, ToMilestoneResponse(m))
	}
	return out
}

type ApproveMilestoneResponse struct {
	Milestone MilestoneResponse `json:"milestone"`
	Escrow    *EscrowResponse   `json:"escrow"`
	Payout    PayoutResponse    `json:"payout"`
}
