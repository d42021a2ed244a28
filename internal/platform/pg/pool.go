package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"jobrelay/internal/shared"
)

// PoolOptions - настройки пула архива.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
	// AppName попадает в pg_stat_activity.application_name.
	AppName string
	// PingTimeout ограничивает проверку соединения при создании пула.
	PingTimeout time.Duration
}

// DefaultPoolOptions возвращает настройки для архива: поток вставок из одного воркера
// и редкие чтения истории.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:    4,
		MinConns:    1,
		AppName:     "jobrelay",
		PingTimeout: 5 * time.Second,
	}
}

// NewPool создает пул и проверяет соединение. Недоступность базы помечается
// shared.ErrUnavailable, чтобы WaitForPool мог отличить ее от ошибки конфигурации.
func NewPool(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnIdleTime = 10 * time.Minute
	if opts.AppName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.AppName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, shared.MarkKind(fmt.Errorf("ping: %w", err), shared.KindUnavailable)
	}
	return pool, nil
}
