package dispute

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

type GetDisputeUseCase struct {
	deps usecase.Deps
}

func NewGetDisputeUseCase(deps usecase.Deps) *GetDisputeUseCase {
	return &GetDisputeUseCase{deps: deps}
}

func (uc *GetDisputeUseCase) Execute(ctx context.Context, orderID, callerID uuid.UUID, role valueobject.Role) (*entity.Dispute, error) {
	var dispute *entity.Dispute
	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		o, err := usecase.LoadOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !o.IsParty(callerID) && !role.CanArbitrate() {
			return apperror.ErrNotOrderParty
		}
		dispute, err = usecase.LoadDispute(ctx, tx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}
