package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/goroutine"
	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
	"github.com/ignatzorin/escrow-market/internal/usecase/order"
)

// CandidateLister источник заказов, готовых к автовыплате.
type CandidateLister interface {
	ListAutoReleaseCandidates(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

// AutoReleaser выплачивает эскроу одного заказа.
type AutoReleaser interface {
	Execute(ctx context.Context, orderID uuid.UUID) (*order.AutoReleaseOutput, error)
}

// SweepResult итог одного прохода.
type SweepResult struct {
	Candidates int
	Released   int
	Failed     int
}

// Sweeper периодически выплачивает эскроу, у которых истёк срок спора.
type Sweeper struct {
	candidates CandidateLister
	release    AutoReleaser
	clock      clock.Clock
	interval   time.Duration
	batch      int
	log        *logrus.Logger
	recovery   *goroutine.RecoveryHandler
}

func NewSweeper(candidates CandidateLister, release AutoReleaser, clk clock.Clock, interval time.Duration, batch int, log *logrus.Logger) *Sweeper {
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		candidates: candidates,
		release:    release,
		clock:      clk,
		interval:   interval,
		batch:      batch,
		log:        log,
		recovery:   goroutine.NewRecoveryHandler(log),
	}
}

// Run выполняет проходы до отмены контекста.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.recovery.Run(func() {
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.WithError(err).Error("sweeper: проход завершился ошибкой")
			}
		})
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce один проход по кандидатам. Ошибка отдельного заказа не прерывает проход.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	ids, err := s.candidates.ListAutoReleaseCandidates(ctx, s.clock.Now(), s.batch)
	if err != nil {
		return res, err
	}
	res.Candidates = len(ids)

	for _, id := range ids {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		out, err := s.release.Execute(ctx, id)
		if err != nil {
			res.Failed++
			s.log.WithFields(logrus.Fields{
				"order_id": id,
				"error":    err.Error(),
			}).Warn("sweeper: автовыплата не выполнена")
			continue
		}
		if out.Released {
			res.Released++
		}
	}

	if res.Candidates > 0 {
		s.log.WithFields(logrus.Fields{
			"candidates": res.Candidates,
			"released":   res.Released,
			"failed":     res.Failed,
		}).Info("sweeper: проход завершён")
	}
	return res, nil
}
