package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/validation"
)

type Milestone struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	Position        int
	Title           string
	Description     string
	Amount          valueobject.Amount
	Status          valueobject.MilestoneStatus
	DueDate         time.Time
	Deliverable     *string
	RejectionReason *string
	StartedAt       *time.Time
	SubmittedAt     *time.Time
	ApprovedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

// MilestonePlan описание этапа при оформлении заказа.
type MilestonePlan struct {
	Title       string
	Description string
	Amount      valueobject.Amount
	DueDate     time.Time
}

// NewMilestones строит этапы заказа. Суммы этапов должны в точности
// покрывать сумму заказа.
func NewMilestones(order *Order, plans []MilestonePlan, maxMilestones int, now time.Time) ([]*Milestone, error) {
	if len(plans) == 0 {
		return nil, nil
	}
	if maxMilestones > 0 && len(plans) > maxMilestones {
		return nil, apperror.Validation("не более %d этапов в заказе", maxMilestones)
	}

	var total valueobject.Amount
	milestones := make([]*Milestone, 0, len(plans))
	for i, p := range plans {
		if err := validation.ValidateNonEmpty("название этапа", p.Title); err != nil {
			return nil, err
		}
		if err := validation.ValidateLength("название этапа", p.Title, 0, validation.MaxMilestoneTitleLength); err != nil {
			return nil, err
		}
		if err := validation.ValidateLength("описание этапа", p.Description, 0, validation.MaxMilestoneDescription); err != nil {
			return nil, err
		}
		if p.Amount == 0 {
			return nil, apperror.Validation("сумма этапа должна быть положительной")
		}
		if !p.DueDate.After(now) {
			return nil, apperror.Validation("срок этапа должен быть в будущем")
		}

		var err error
		total, err = valueobject.CheckedAdd(total, p.Amount)
		if err != nil {
			return nil, err
		}

		milestones = append(milestones, &Milestone{
			ID:          uuid.New(),
			OrderID:     order.ID,
			Position:    i + 1,
			Title:       p.Title,
			Description: p.Description,
			Amount:      p.Amount,
			Status:      valueobject.MilestoneStatusPending,
			DueDate:     p.DueDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if total != order.Amount {
		return nil, apperror.Validation("сумма этапов (%d) должна совпадать с суммой заказа (%d)", total, order.Amount)
	}
	return milestones, nil
}

func (m *Milestone) moveTo(status valueobject.MilestoneStatus, now time.Time) error {
	if !m.Status.CanTransitionTo(status) {
		return apperror.ErrInvalidMilestoneStatus
	}
	m.Status = status
	m.UpdatedAt = now
	return nil
}

func (m *Milestone) Start(now time.Time) error {
	if err := m.moveTo(valueobject.MilestoneStatusInProgress, now); err != nil {
		return err
	}
	m.StartedAt = &now
	return nil
}

func (m *Milestone) Submit(deliverable string, now time.Time) error {
	if err := validation.ValidateNonEmpty("результат этапа", deliverable); err != nil {
		return err
	}
	if err := validation.ValidateLength("результат этапа", deliverable, 0, validation.MaxRefLength); err != nil {
		return err
	}
	if err := m.moveTo(valueobject.MilestoneStatusSubmitted, now); err != nil {
		return err
	}
	m.Deliverable = &deliverable
	m.RejectionReason = nil
	m.SubmittedAt = &now
	return nil
}

func (m *Milestone) Approve(now time.Time) error {
	if err := m.moveTo(valueobject.MilestoneStatusApproved, now); err != nil {
		return err
	}
	m.ApprovedAt = &now
	return nil
}

func (m *Milestone) Reject(reason string, now time.Time) error {
	if err := validation.ValidateNonEmpty("причина отклонения", reason); err != nil {
		return err
	}
	if err := validation.ValidateLength("причина отклонения", reason, 0, validation.MaxRejectionReasonLength); err != nil {
		return err
	}
	if err := m.moveTo(valueobject.MilestoneStatusRejected, now); err != nil {
		return err
	}
	m.RejectionReason = &reason
	return nil
}
