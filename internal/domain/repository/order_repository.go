package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/entity"
)

// Get* внутри транзакции возвращают копию записи. Изменения попадают в
// хранилище только через Update*, который сверяет Version и увеличивает её.

type ListingRepository interface {
	GetListing(ctx context.Context, id uuid.UUID) (*entity.Listing, error)
	InsertListing(ctx context.Context, listing *entity.Listing) error
	UpdateListing(ctx context.Context, listing *entity.Listing) error
	ListListingsByOwner(ctx context.Context, owner uuid.UUID, page Page) ([]*entity.Listing, error)
}

type OrderRepository interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	InsertOrder(ctx context.Context, order *entity.Order) error
	UpdateOrder(ctx context.Context, order *entity.Order) error
	ListOrdersByParty(ctx context.Context, party uuid.UUID, page Page) ([]*entity.Order, error)
}

type EscrowRepository interface {
	GetEscrowByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Escrow, error)
	InsertEscrow(ctx context.Context, escrow *entity.Escrow) error
	UpdateEscrow(ctx context.Context, escrow *entity.Escrow) error
}

type DisputeRepository interface {
	// GetDisputeByOrder возвращает ErrDisputeNotFound, если спора по заказу нет.
	GetDisputeByOrder(ctx context.Context, orderID uuid.UUID) (*entity.Dispute, error)
	InsertDispute(ctx context.Context, dispute *entity.Dispute) error
	UpdateDispute(ctx context.Context, dispute *entity.Dispute) error
}

type MilestoneRepository interface {
	GetMilestone(ctx context.Context, id uuid.UUID) (*entity.Milestone, error)
	ListMilestones(ctx context.Context, orderID uuid.UUID) ([]*entity.Milestone, error)
	InsertMilestone(ctx context.Context, milestone *entity.Milestone) error
	UpdateMilestone(ctx context.Context, milestone *entity.Milestone) error
}

type ReviewRepository interface {
	// InsertReview возвращает ErrReviewAlreadyExists для повторной пары (заказ, автор).
	InsertReview(ctx context.Context, review *entity.Review) error
	ListReviewsByOrder(ctx context.Context, orderID uuid.UUID) ([]*entity.Review, error)
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*entity.Profile, error)
	// SaveProfile создаёт профиль при Version == 0, иначе обновляет со сверкой версии.
	SaveProfile(ctx context.Context, profile *entity.Profile) error
}

type Page struct {
	Limit  int
	Offset int
}

// Normalize ограничивает размер страницы.
func (p Page) Normalize() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
