package milestone

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

// loadForUpdate этап вместе с заказом. Этапы меняются только пока заказ
// в работе: ни спор, ни завершение этого не допускают.
func loadForUpdate(ctx context.Context, tx repository.LedgerTx, milestoneID uuid.UUID) (*entity.Milestone, *entity.Order, error) {
	m, err := tx.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, nil, apperror.Lift(err, "не удалось получить этап")
	}
	o, err := usecase.LoadOrder(ctx, tx, m.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.Status.IsActive() {
		return nil, nil, apperror.ErrInvalidOrderStatus
	}
	return m, o, nil
}

func saveMilestone(ctx context.Context, tx repository.LedgerTx, m *entity.Milestone) error {
	if err := tx.UpdateMilestone(ctx, m); err != nil {
		return apperror.Lift(err, "не удалось сохранить этап")
	}
	return nil
}

func milestoneEvent(t entity.EventType, o *entity.Order, m *entity.Milestone, now time.Time) entity.Event {
	ev := entity.NewOrderEvent(t, o, now)
	ev.Amount = m.Amount
	ev.Status = string(m.Status)
	return ev
}

type StartMilestoneUseCase struct {
	deps usecase.Deps
}

func NewStartMilestoneUseCase(deps usecase.Deps) *StartMilestoneUseCase {
	return &StartMilestoneUseCase{deps: deps}
}

// Execute начинает этап. Первый начатый этап переводит принятый заказ в работу.
func (uc *StartMilestoneUseCase) Execute(ctx context.Context, milestoneID, sellerID uuid.UUID) (*entity.Milestone, error) {
	now := uc.deps.Clock.Now()
	var (
		milestone *entity.Milestone
		order     *entity.Order
	)

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		m, o, err := loadForUpdate(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if !o.IsSeller(sellerID) {
			return apperror.ErrForbidden
		}
		if err := m.Start(now); err != nil {
			return err
		}
		if o.Status == valueobject.OrderStatusAccepted {
			if err := o.Start(now); err != nil {
				return err
			}
			if err := usecase.SaveOrder(ctx, tx, o); err != nil {
				return err
			}
		}
		milestone, order = m, o
		return saveMilestone(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, milestoneEvent(entity.EventMilestoneStarted, order, milestone, now))
	return milestone, nil
}

type SubmitMilestoneUseCase struct {
	deps usecase.Deps
}

func NewSubmitMilestoneUseCase(deps usecase.Deps) *SubmitMilestoneUseCase {
	return &SubmitMilestoneUseCase{deps: deps}
}

func (uc *SubmitMilestoneUseCase) Execute(ctx context.Context, milestoneID, sellerID uuid.UUID, deliverable string) (*entity.Milestone, error) {
	now := uc.deps.Clock.Now()
	var (
		milestone *entity.Milestone
		order     *entity.Order
	)

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		m, o, err := loadForUpdate(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if !o.IsSeller(sellerID) {
			return apperror.ErrForbidden
		}
		if err := m.Submit(deliverable, now); err != nil {
			return err
		}
		milestone, order = m, o
		return saveMilestone(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, milestoneEvent(entity.EventMilestoneSubmitted, order, milestone, now))
	return milestone, nil
}

type ApproveMilestoneOutput struct {
	Milestone *entity.Milestone
	Escrow    *entity.Escrow
	Payout    valueobject.FeeBreakdown
}

type ApproveMilestoneUseCase struct {
	deps usecase.Deps
}

func NewApproveMilestoneUseCase(deps usecase.Deps) *ApproveMilestoneUseCase {
	return &ApproveMilestoneUseCase{deps: deps}
}

// Execute принимает этап и выплачивает его сумму продавцу по ставке эскроу.
func (uc *ApproveMilestoneUseCase) Execute(ctx context.Context, milestoneID, buyerID uuid.UUID) (*ApproveMilestoneOutput, error) {
	now := uc.deps.Clock.Now()
	var (
		out   ApproveMilestoneOutput
		order *entity.Order
	)

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		m, o, err := loadForUpdate(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if !o.IsBuyer(buyerID) {
			return apperror.ErrForbidden
		}
		if err := m.Approve(now); err != nil {
			return err
		}

		e, err := usecase.LoadEscrow(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		payout, err := uc.deps.Escrow.PartialRelease(ctx, tx, e, m.Amount, now)
		if err != nil {
			return err
		}
		if err := o.RecordMilestoneApproved(now); err != nil {
			return err
		}
		if err := saveMilestone(ctx, tx, m); err != nil {
			return err
		}

		out = ApproveMilestoneOutput{Milestone: m, Escrow: e, Payout: payout}
		order = o
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	ev := milestoneEvent(entity.EventMilestoneApproved, order, out.Milestone, now)
	ev.PlatformFee = out.Payout.Fee
	ev.SellerPayout = out.Payout.Net
	uc.deps.Effects.Publish(ctx, ev)
	uc.deps.Effects.Earnings(ctx, order.ID, order.Seller, out.Payout.Net)
	return &out, nil
}

type RejectMilestoneUseCase struct {
	deps usecase.Deps
}

func NewRejectMilestoneUseCase(deps usecase.Deps) *RejectMilestoneUseCase {
	return &RejectMilestoneUseCase{deps: deps}
}

func (uc *RejectMilestoneUseCase) Execute(ctx context.Context, milestoneID, buyerID uuid.UUID, reason string) (*entity.Milestone, error) {
	now := uc.deps.Clock.Now()
	var (
		milestone *entity.Milestone
		order     *entity.Order
	)

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		m, o, err := loadForUpdate(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if !o.IsBuyer(buyerID) {
			return apperror.ErrForbidden
		}
		if err := m.Reject(reason, now); err != nil {
			return err
		}
		milestone, order = m, o
		return saveMilestone(ctx, tx, m)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, milestoneEvent(entity.EventMilestoneRejected, order, milestone, now))
	return milestone, nil
}

type ListMilestonesUseCase struct {
	deps usecase.Deps
}

func NewListMilestonesUseCase(deps usecase.Deps) *ListMilestonesUseCase {
	return &ListMilestonesUseCase{deps: deps}
}

func (uc *ListMilestonesUseCase) Execute(ctx context.Context, orderID, callerID uuid.UUID, role valueobject.Role) ([]*entity.Milestone, error) {
	var milestones []*entity.Milestone
	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.IsParty(callerID) && !role.CanArbitrate() {
			return apperror.ErrNotOrderParty
		}
		milestones, err = tx.ListMilestones(ctx, o.ID)
		return apperror.Lift(err, "не удалось получить этапы")
	})
	if err != nil {
		return nil, err
	}
	return milestones, nil
}
