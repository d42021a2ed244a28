package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobrelay/internal/shared"
	"jobrelay/pkg/retry"
)

// ConnectConfig - политика ожидания базы при старте: контейнер с Postgres
// может подниматься дольше приложения.
func ConnectConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 10
	cfg.InitialDelay = 500 * time.Millisecond
	cfg.MaxDelay = 5 * time.Second
	cfg.MaxElapsedTime = 30 * time.Second
	return cfg
}

// WaitForPool повторяет NewPool, пока база не станет доступна.
// Ошибки разбора DSN не повторяются.
func WaitForPool(ctx context.Context, dsn string, opts PoolOptions, cfg retry.Config) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := retry.DoWithRetryable(ctx, cfg, func(ctx context.Context) error {
		p, err := NewPool(ctx, dsn, opts)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}, func(err error) bool { return shared.IsUnavailable(err) || shared.IsTransient(err) })
	if err != nil {
		return nil, fmt.Errorf("database not available: %w", err)
	}
	return pool, nil
}

// HealthCheckPool проверяет пул запросом SELECT 1.
func HealthCheckPool(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("pool is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("simple query failed: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("unexpected query result: got %d, want 1", result)
	}
	return nil
}
