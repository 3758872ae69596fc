package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/escrow-market/internal/domain/entity"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
)

const reputationAttempts = 3

// ReputationService обновляет профили пользователей в леджере. Профиль
// общий для многих заказов, поэтому при конфликте версий запись повторяется.
type ReputationService struct {
	ledger repository.Ledger
	clock  clock.Clock
	log    *logrus.Logger
}

var _ repository.ReputationRecorder = (*ReputationService)(nil)

func NewReputationService(ledger repository.Ledger, clk clock.Clock, log *logrus.Logger) *ReputationService {
	return &ReputationService{ledger: ledger, clock: clk, log: log}
}

func (s *ReputationService) RecordCompletion(ctx context.Context, party uuid.UUID, rating *int) error {
	return s.update(ctx, party, func(p *entity.Profile) error {
		return p.RecordCompletion(rating, s.clock.Now())
	})
}

func (s *ReputationService) RecordRating(ctx context.Context, party uuid.UUID, rating int) error {
	return s.update(ctx, party, func(p *entity.Profile) error {
		return p.RecordRating(rating, s.clock.Now())
	})
}

func (s *ReputationService) RecordEarnings(ctx context.Context, party uuid.UUID, amount valueobject.Amount) error {
	return s.update(ctx, party, func(p *entity.Profile) error {
		return p.RecordEarnings(amount, s.clock.Now())
	})
}

// Profile возвращает профиль. У пользователя без завершённых заказов
// профиль пустой, а не ошибка.
func (s *ReputationService) Profile(ctx context.Context, userID uuid.UUID) (*entity.Profile, error) {
	var profile *entity.Profile
	err := s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
		var err error
		profile, err = loadProfile(ctx, tx, userID, s.clock)
		return err
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *ReputationService) update(ctx context.Context, userID uuid.UUID, apply func(p *entity.Profile) error) error {
	var err error
	for attempt := 1; attempt <= reputationAttempts; attempt++ {
		err = s.ledger.WithinTx(ctx, func(tx repository.LedgerTx) error {
			p, err := loadProfile(ctx, tx, userID, s.clock)
			if err != nil {
				return err
			}
			if err := apply(p); err != nil {
				return err
			}
			return apperror.Lift(tx.SaveProfile(ctx, p), "не удалось сохранить профиль")
		})
		if !errors.Is(err, apperror.ErrVersionConflict) {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"attempt": attempt,
		}).Debug("конфликт версий профиля, повтор")
	}
	return err
}

func loadProfile(ctx context.Context, tx repository.LedgerTx, userID uuid.UUID, clk clock.Clock) (*entity.Profile, error) {
	p, err := tx.GetProfile(ctx, userID)
	switch {
	case err == nil:
		return p, nil
	case apperror.IsNotFound(err):
		return entity.NewProfile(userID, clk.Now()), nil
	default:
		return nil, apperror.Lift(err, "не удалось получить профиль")
	}
}
