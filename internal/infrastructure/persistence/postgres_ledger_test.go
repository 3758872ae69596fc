package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ignatzorin/escrow-market/internal/db"
	"github.com/ignatzorin/escrow-market/internal/domain/repository"
)

// startPostgres поднимает Postgres 16 в контейнере. TEST_PG_DSN позволяет
// использовать уже запущенную базу.
func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres: пропуск в режиме -short")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		pgC, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("escrow"),
			postgres.WithUsername("escrow"),
			postgres.WithPassword("escrow"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(time.Minute),
			),
		)
		if err != nil {
			t.Skipf("postgres: контейнер недоступен: %v", err)
		}
		t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

		dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	conn, err := db.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	_, err = db.RunMigrations(ctx, conn, "../../../migrations")
	require.NoError(t, err)
	return conn
}

func TestPostgresLedger(t *testing.T) {
	conn := startPostgres(t)
	// все подтесты работают в одной базе: записи изолированы случайными id
	runLedgerContract(t, func(t *testing.T) repository.Ledger {
		return NewPostgresLedger(conn)
	})
	t.Cleanup(func() { _ = conn.Close() })
}
