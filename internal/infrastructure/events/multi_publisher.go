package events

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
)

// MultiPublisher раздаёт события всем публикаторам. Сбой одного не мешает
// остальным и не возвращается вызывающему, только логируется.
type MultiPublisher struct {
	publishers []repository.EventPublisher
	log        *logrus.Logger
}

func NewMultiPublisher(log *logrus.Logger, publishers ...repository.EventPublisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers, log: log}
}

func (m *MultiPublisher) Publish(ctx context.Context, events ...entity.Event) error {
	for _, p := range m.publishers {
		if err := p.Publish(ctx, events...); err != nil {
			m.log.WithFields(logrus.Fields{
				"publisher": fmt.Sprintf("%T", p),
				"events":    len(events),
				"error":     err.Error(),
			}).Warn("не удалось доставить события")
		}
	}
	return nil
}
