package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
)

type LogPublisher struct {
	log *logrus.Logger
}

func NewLogPublisher(log *logrus.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, events ...entity.Event) error {
	for _, ev := range events {
		fields := logrus.Fields{
			"event":  ev.Type,
			"key":    ev.Key,
			"amount": uint64(ev.Amount),
		}
		if ev.Status != "" {
			fields["status"] = ev.Status
		}
		if ev.PlatformFee > 0 {
			fields["platform_fee"] = uint64(ev.PlatformFee)
		}
		if ev.SellerPayout > 0 {
			fields["seller_payout"] = uint64(ev.SellerPayout)
		}
		if ev.BuyerRefund > 0 {
			fields["buyer_refund"] = uint64(ev.BuyerRefund)
		}
		p.log.WithFields(fields).Info("событие")
	}
	return nil
}
