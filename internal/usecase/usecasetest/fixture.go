// Package usecasetest общая обвязка тестов use case'ов: леджер в памяти,
// фиксированные часы и запись опубликованных событий.
package usecasetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/infrastructure/persistence"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
	"github.com/ignatzorin/escrow-market/internal/usecase"
	"github.com/ignatzorin/escrow-market/internal/usecase/escrow"
)

var Start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	FeeRate       valueobject.BasisPoints = 250
	DisputePeriod                         = 72 * time.Hour
	DeliveryTime                          = 7 * 24 * time.Hour
)

// EventRecorder запоминает опубликованные события.
type EventRecorder struct {
	mu     sync.Mutex
	events []entity.Event
}

func (r *EventRecorder) Publish(_ context.Context, events ...entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *EventRecorder) Types() []entity.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *EventRecorder) Last() entity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return entity.Event{}
	}
	return r.events[len(r.events)-1]
}

type Fixture struct {
	Ledger   *persistence.MemoryLedger
	Clock    *clock.Fixed
	Events   *EventRecorder
	Deps     usecase.Deps
	Buyer    uuid.UUID
	Seller   uuid.UUID
	Treasury uuid.UUID
	Listing  *entity.Listing
}

// New леджер с объявлением продавца по цене price и пополненным счётом покупателя.
func New(t testing.TB, price valueobject.Amount, reputation repository.ReputationRecorder) *Fixture {
	t.Helper()

	f := &Fixture{
		Ledger:   persistence.NewMemoryLedger(),
		Clock:    clock.NewFixed(Start),
		Events:   &EventRecorder{},
		Buyer:    uuid.New(),
		Seller:   uuid.New(),
		Treasury: uuid.New(),
	}
	policy := entity.PlatformPolicy{
		FeeRate:            FeeRate,
		DisputePeriod:      DisputePeriod,
		AutoReleaseEnabled: true,
		Treasury:           f.Treasury,
		MaxMilestones:      10,
		Listing: entity.ListingLimits{
			MinPrice:        1,
			MinDeliveryTime: time.Hour,
			MaxDeliveryTime: 90 * 24 * time.Hour,
			MaxRevisions:    5,
		},
	}
	f.Deps = usecase.Deps{
		Ledger:  f.Ledger,
		Clock:   f.Clock,
		Escrow:  escrow.NewManager(f.Treasury),
		Policy:  policy,
		Effects: usecase.NewSideEffects(f.Events, reputation, logger.Nop()),
	}

	listing, err := entity.NewListing(f.Seller, entity.ListingTerms{
		Title:        "Дизайн лендинга",
		Description:  "Макет в Figma",
		Price:        price,
		DeliveryTime: DeliveryTime,
		MaxRevisions: 2,
	}, policy.Listing, Start)
	require.NoError(t, err)
	f.Listing = listing

	ctx := context.Background()
	require.NoError(t, f.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		if err := tx.InsertListing(ctx, listing); err != nil {
			return err
		}
		return tx.Credit(ctx, f.Buyer, price)
	}))
	return f
}

func (f *Fixture) Balance(t testing.TB, account uuid.UUID) valueobject.Amount {
	t.Helper()
	var balance valueobject.Amount
	ctx := context.Background()
	require.NoError(t, f.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		balance, err = tx.Balance(ctx, account)
		return err
	}))
	return balance
}

func (f *Fixture) Order(t testing.TB, id uuid.UUID) *entity.Order {
	t.Helper()
	var o *entity.Order
	ctx := context.Background()
	require.NoError(t, f.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		o, err = tx.GetOrder(ctx, id)
		return err
	}))
	return o
}

func (f *Fixture) Escrow(t testing.TB, orderID uuid.UUID) *entity.Escrow {
	t.Helper()
	var e *entity.Escrow
	ctx := context.Background()
	require.NoError(t, f.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		e, err = tx.GetEscrowByOrder(ctx, orderID)
		return err
	}))
	return e
}

func (f *Fixture) ListingState(t testing.TB) *entity.Listing {
	t.Helper()
	var l *entity.Listing
	ctx := context.Background()
	require.NoError(t, f.Ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		l, err = tx.GetListing(ctx, f.Listing.ID)
		return err
	}))
	return l
}
