package events

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
)

// Broadcaster отправка сообщения подключениям пользователя.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// WSPublisher пересылает события обеим сторонам заказа.
type WSPublisher struct {
	hub Broadcaster
}

func NewWSPublisher(hub Broadcaster) *WSPublisher {
	return &WSPublisher{hub: hub}
}

func (p *WSPublisher) Publish(_ context.Context, events ...entity.Event) error {
	var errs []error
	for _, ev := range events {
		for _, userID := range ev.Recipients() {
			if err := p.hub.BroadcastToUser(userID, string(ev.Type), ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
