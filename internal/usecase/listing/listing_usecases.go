package listing

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/usecase"
)

type CreateListingUseCase struct {
	deps usecase.Deps
}

func NewCreateListingUseCase(deps usecase.Deps) *CreateListingUseCase {
	return &CreateListingUseCase{deps: deps}
}

func (uc *CreateListingUseCase) Execute(ctx context.Context, ownerID uuid.UUID, terms entity.ListingTerms) (*entity.Listing, error) {
	now := uc.deps.Clock.Now()

	l, err := entity.NewListing(ownerID, terms, uc.deps.Policy.Listing, now)
	if err != nil {
		return nil, err
	}
	err = uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		return apperror.Lift(tx.InsertListing(ctx, l), "не удалось создать объявление")
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewListingEvent(entity.EventListingCreated, l, now))
	return l, nil
}

type UpdateListingUseCase struct {
	deps usecase.Deps
}

func NewUpdateListingUseCase(deps usecase.Deps) *UpdateListingUseCase {
	return &UpdateListingUseCase{deps: deps}
}

// Execute меняет условия объявления. Счётчики заказов и рейтинга не трогаются.
func (uc *UpdateListingUseCase) Execute(ctx context.Context, listingID, ownerID uuid.UUID, terms entity.ListingTerms) (*entity.Listing, error) {
	now := uc.deps.Clock.Now()
	var listing *entity.Listing

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		l, err := usecase.LoadListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if !l.IsOwnedBy(ownerID) {
			return apperror.ErrForbidden
		}
		if err := l.UpdateTerms(terms, uc.deps.Policy.Listing, now); err != nil {
			return err
		}
		listing = l
		return usecase.SaveListing(ctx, tx, l)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewListingEvent(entity.EventListingUpdated, listing, now))
	return listing, nil
}

type DeactivateListingUseCase struct {
	deps usecase.Deps
}

func NewDeactivateListingUseCase(deps usecase.Deps) *DeactivateListingUseCase {
	return &DeactivateListingUseCase{deps: deps}
}

// Execute снимает объявление с продажи. Уже оформленные заказы продолжаются.
func (uc *DeactivateListingUseCase) Execute(ctx context.Context, listingID, ownerID uuid.UUID) (*entity.Listing, error) {
	now := uc.deps.Clock.Now()
	var listing *entity.Listing

	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		l, err := usecase.LoadListing(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if !l.IsOwnedBy(ownerID) {
			return apperror.ErrForbidden
		}
		l.Deactivate(now)
		listing = l
		return usecase.SaveListing(ctx, tx, l)
	})
	if err != nil {
		return nil, err
	}

	uc.deps.Effects.Publish(ctx, entity.NewListingEvent(entity.EventListingDeactivated, listing, now))
	return listing, nil
}

type GetListingUseCase struct {
	deps usecase.Deps
}

func NewGetListingUseCase(deps usecase.Deps) *GetListingUseCase {
	return &GetListingUseCase{deps: deps}
}

func (uc *GetListingUseCase) Execute(ctx context.Context, listingID uuid.UUID) (*entity.Listing, error) {
	var listing *entity.Listing
	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		listing, err = usecase.LoadListing(ctx, tx, listingID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

type ListByOwnerUseCase struct {
	deps usecase.Deps
}

func NewListByOwnerUseCase(deps usecase.Deps) *ListByOwnerUseCase {
	return &ListByOwnerUseCase{deps: deps}
}

func (uc *ListByOwnerUseCase) Execute(ctx context.Context, ownerID uuid.UUID, page repository.Page) ([]*entity.Listing, error) {
	var listings []*entity.Listing
	err := uc.deps.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		listings, err = tx.ListListingsByOwner(ctx, ownerID, page)
		return apperror.Lift(err, "не удалось получить список объявлений")
	})
	if err != nil {
		return nil, err
	}
	return listings, nil
}
