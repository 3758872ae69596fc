package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
)

// SideEffects действия после фиксации транзакции: события и репутация.
// Ошибки только логируются, операция к этому моменту уже выполнена.
type SideEffects struct {
	events     repository.EventPublisher
	reputation repository.ReputationRecorder
	log        *logrus.Logger
}

func NewSideEffects(events repository.EventPublisher, reputation repository.ReputationRecorder, log *logrus.Logger) *SideEffects {
	return &SideEffects{events: events, reputation: reputation, log: log}
}

func (s *SideEffects) Publish(ctx context.Context, events ...entity.Event) {
	if s == nil || s.events == nil || len(events) == 0 {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		s.log.WithFields(logrus.Fields{
			"event": events[0].Type,
			"error": err.Error(),
		}).Warn("не удалось опубликовать событие")
	}
}

// OrderCompleted обновляет репутацию обеих сторон. rating оценка продавцу от покупателя.
func (s *SideEffects) OrderCompleted(ctx context.Context, order *entity.Order, rating *int, sellerNet valueobject.Amount) {
	if s == nil || s.reputation == nil {
		return
	}
	s.warn(order.ID, "репутация продавца", s.reputation.RecordCompletion(ctx, order.Seller, rating))
	s.warn(order.ID, "репутация покупателя", s.reputation.RecordCompletion(ctx, order.Buyer, nil))
	s.Earnings(ctx, order.ID, order.Seller, sellerNet)
}

func (s *SideEffects) Earnings(ctx context.Context, orderID, seller uuid.UUID, amount valueobject.Amount) {
	if s == nil || s.reputation == nil || amount == 0 {
		return
	}
	s.warn(orderID, "доход продавца", s.reputation.RecordEarnings(ctx, seller, amount))
}

func (s *SideEffects) Rating(ctx context.Context, orderID, reviewee uuid.UUID, rating int) {
	if s == nil || s.reputation == nil {
		return
	}
	s.warn(orderID, "оценка", s.reputation.RecordRating(ctx, reviewee, rating))
}

func (s *SideEffects) warn(orderID uuid.UUID, what string, err error) {
	if err == nil {
		return
	}
	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"error":    err.Error(),
	}).Warnf("не удалось обновить: %s", what)
}
