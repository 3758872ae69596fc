package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
)

// Custody счета хранения средств. Переводы атомарны и не проходят
// частично при нехватке баланса.
type Custody interface {
	// Credit зачисляет внешнее пополнение на счёт пользователя.
	Credit(ctx context.Context, account uuid.UUID, amount valueobject.Amount) error
	// Deposit переводит средства со счёта source на счёт эскроу.
	Deposit(ctx context.Context, source, escrowID uuid.UUID, amount valueobject.Amount) error
	// Transfer выплачивает средства со счёта эскроу на счёт destination.
	Transfer(ctx context.Context, escrowID, destination uuid.UUID, amount valueobject.Amount) error
	Balance(ctx context.Context, account uuid.UUID) (valueobject.Amount, error)
}

// LedgerTx набор операций, выполняемых в одной транзакции.
type LedgerTx interface {
	ListingRepository
	OrderRepository
	EscrowRepository
	DisputeRepository
	MilestoneRepository
	ReviewRepository
	ProfileRepository
	Custody
}

// Ledger хранилище записей. Все изменения заказа, его эскроу, спора и
// этапов выполняются внутри WithinTx и фиксируются вместе или не фиксируются вовсе.
type Ledger interface {
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error
	// ListAutoReleaseCandidates заказы, чьи эскроу могут быть выплачены автоматически.
	ListAutoReleaseCandidates(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	Close() error
}

// EventPublisher доставляет доменные события внешним потребителям.
type EventPublisher interface {
	Publish(ctx context.Context, events ...entity.Event) error
}

// ReputationRecorder обновление профилей после завершения заказа.
type ReputationRecorder interface {
	RecordCompletion(ctx context.Context, party uuid.UUID, rating *int) error
	RecordRating(ctx context.Context, party uuid.UUID, rating int) error
	RecordEarnings(ctx context.Context, party uuid.UUID, amount valueobject.Amount) error
}
