package dispute

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

type OpenDisputeInput struct {
	OrderID     uuid.UUID
	InitiatorID uuid.UUID
	Reason      string
	Description string
	Evidence    []string
}

type OpenDisputeOutput struct {
	Order   *entity.Order
	Escrow  *entity.Escrow
	Dispute *entity.Dispute
}

type OpenDisputeUseCase struct {
	deps usecase.Deps
}

func NewOpenDisputeUseCase(deps usecase.Deps) *OpenDisputeUseCase {
	return &OpenDisputeUseCase{deps: deps}
}

// Execute открывает спор по заказу и блокирует эскроу. По одному заказу
// спор открывается не больше одного раза.
func (uc *OpenDisputeUseCase) Execute(ctx context.Context, input OpenDisputeInput) (*OpenDisputeOutput, error) {
	now := uc.deps.Clock.Now()
	var out OpenDisputeOutput

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		d, err := entity.NewDispute(o, input.InitiatorID, input.Reason, input.Description, input.Evidence, now)
		if err != nil {
			return err
		}
		if err := o.RaiseDispute(uc.deps.Policy.DisputePeriod, now); err != nil {
			return err
		}
		if err := tx.InsertDispute(ctx, d); err != nil {
			return apperror.Lift(err, "не удалось сохранить спор")
		}

		e, err := usecase.LoadEscrow(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		if err := uc.deps.Escrow.Lock(ctx, tx, e, now); err != nil {
			return err
		}

		out = OpenDisputeOutput{Order: o, Escrow: e, Dispute: d}
		return usecase.SaveOrder(ctx, tx, o)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewOrderEvent(entity.EventOrderDisputed, out.Order, now))
	return &out, nil
}
