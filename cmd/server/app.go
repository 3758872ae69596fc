package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/db"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	httpRouter "github.com/ignatzorin/escrow-market/internal/http/router"
	"github.com/ignatzorin/escrow-market/internal/infrastructure/events"
	"github.com/ignatzorin/escrow-market/internal/infrastructure/persistence"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/pkg/clock"
	"github.com/ignatzorin/escrow-market/internal/service"
	"github.com/ignatzorin/escrow-market/internal/storage"
	"github.com/ignatzorin/escrow-market/internal/usecase"
	"github.com/ignatzorin/escrow-market/internal/usecase/escrow"
	"github.com/ignatzorin/escrow-market/internal/usecase/order"
	"github.com/ignatzorin/escrow-market/internal/worker"
	"github.com/ignatzorin/escrow-market/internal/ws"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger.Init(cfg.LogLevel)
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	return cfg, nil
}

// openLedger открывает хранилище по LEDGER_DRIVER. Для postgres
// перед этим применяются миграции.
func openLedger(ctx context.Context, cfg *config.Config) (repository.Ledger, error) {
	switch cfg.LedgerDriver {
	case config.LedgerMemory:
		logger.Log.Warn("main: леджер в памяти, данные пропадут при остановке")
		return persistence.NewMemoryLedger(), nil
	case config.LedgerPebble:
		return persistence.NewPebbleLedger(cfg.PebblePath)
	default:
		conn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		applied, err := db.RunMigrations(ctx, conn, cfg.MigrationsPath)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		for _, name := range applied {
			logger.Log.WithField("migration", name).Info("main: миграция применена")
		}
		return persistence.NewPostgresLedger(conn), nil
	}
}

type app struct {
	cfg        *config.Config
	ledger     repository.Ledger
	clock      clock.Clock
	hub        *ws.Hub
	kafka      *events.KafkaPublisher
	reputation *service.ReputationService
	deps       usecase.Deps
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		ledger: ledger,
		clock:  clock.System(),
		hub:    ws.NewHub(logger.Log),
	}

	publishers := []repository.EventPublisher{
		events.NewLogPublisher(logger.Log),
		events.NewWSPublisher(a.hub),
	}
	if len(cfg.KafkaBrokers) > 0 {
		a.kafka = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publishers = append(publishers, a.kafka)
	}

	a.reputation = service.NewReputationService(ledger, a.clock, logger.Log)
	a.deps = usecase.Deps{
		Ledger:  ledger,
		Clock:   a.clock,
		Escrow:  escrow.NewManager(cfg.Platform.Treasury),
		Policy:  cfg.Platform,
		Effects: usecase.NewSideEffects(events.NewMultiPublisher(logger.Log, publishers...), a.reputation, logger.Log),
	}

	logger.Log.WithFields(logrus.Fields{
		"ledger":       cfg.LedgerDriver,
		"fee_rate_bps": cfg.Platform.FeeRate,
		"kafka":        len(cfg.KafkaBrokers) > 0,
	}).Info("main: зависимости готовы")
	return a, nil
}

func (a *app) close() {
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			logger.Log.WithError(err).Warn("main: ошибка закрытия kafka writer")
		}
	}
	if err := a.ledger.Close(); err != nil {
		logger.Log.WithError(err).Warn("main: ошибка закрытия леджера")
	}
}

func (a *app) sweeper() *worker.Sweeper {
	return worker.NewSweeper(a.ledger, order.NewAutoReleaseUseCase(a.deps), a.clock, a.cfg.SweepInterval, a.cfg.SweepBatch, logger.Log)
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	files, err := storage.NewFileStore(cfg.FileStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		return fmt.Errorf("не удалось подготовить файловое хранилище: %w", err)
	}
	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, a.clock)

	cache := service.NewCacheService(a.clock)
	handlers := httpRouter.NewHandlers(a.deps, a.reputation, cache, files, a.hub, cfg.AllowedOrigins, logger.Log)
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           httpRouter.SetupRouter(cfg, handlers, tokens, logger.Log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(c.Context)

	g.Go(func() error { return a.hub.Run(ctx) })
	g.Go(func() error { return cache.Run(ctx, time.Minute) })

	if cfg.Platform.AutoReleaseEnabled {
		g.Go(func() error { return a.sweeper().Run(ctx) })
	}

	g.Go(func() error {
		logger.Log.WithField("port", cfg.HTTPPort).Info("main: http сервер запущен")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})

	// Завершаем сервер при отмене контекста.
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Log.Info("main: сервер остановлен")
	return err
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.NewPostgres(c.Context, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	if c.Bool("status") {
		migrations, err := db.MigrationStatus(c.Context, conn, cfg.MigrationsPath)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			state := "ожидает"
			if m.AppliedAt != nil {
				state = m.AppliedAt.Format(time.RFC3339)
			}
			printf(c, "%-40s %s\n", m.Name, state)
		}
		return nil
	}

	applied, err := db.RunMigrations(c.Context, conn, cfg.MigrationsPath)
	if err != nil {
		return err
	}
	printf(c, "применено миграций: %d\n", len(applied))
	return nil
}

func sweepOnce(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.sweeper().RunOnce(c.Context)
	if err != nil {
		return err
	}
	printf(c, "кандидатов: %d, выплачено: %d, ошибок: %d\n", res.Candidates, res.Released, res.Failed)
	return nil
}

func issueToken(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	userID, err := uuid.Parse(c.String("user"))
	if err != nil {
		return fmt.Errorf("некорректный --user: %w", err)
	}

	tokens := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, clock.System())
	token, expiresAt, err := tokens.GenerateAccess(userID, valueobject.Role(c.String("role")))
	if err != nil {
		return err
	}
	printf(c, "%s\nистекает: %s\n", token, expiresAt.Format(time.RFC3339))
	return nil
}
