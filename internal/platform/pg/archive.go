package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobrelay/internal/domain/job"
	"jobrelay/pkg/retry"
)

// Archive хранит копии записей журнала в PostgreSQL.
type Archive struct {
	pool  *pgxpool.Pool
	retry retry.Config
	log   *slog.Logger
}

// NewArchive ждёт базу, применяет миграции и открывает пул.
func NewArchive(ctx context.Context, dsn string, log *slog.Logger) (*Archive, error) {
	if log == nil {
		log = slog.Default()
	}
	pool, err := WaitForPool(ctx, dsn, DefaultPoolOptions(), ConnectConfig())
	if err != nil {
		return nil, err
	}
	info, err := ApplyMigrations(dsn)
	if err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("postgres archive opened", "schema_version", info.FinalVersion, "migrated", info.Applied)
	return &Archive{pool: pool, retry: retry.StorageConfig(), log: log}, nil
}

// Archive сохраняет запись. Обрывы соединения повторяются.
func (a *Archive) Archive(ctx context.Context, e job.Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	err = retry.DoWithRetryable(ctx, a.retry, func(ctx context.Context) error {
		_, err := a.pool.Exec(ctx,
			`INSERT INTO log_entries (job_id, seq, event, created_at, payload) VALUES ($1, $2, $3, $4, $5)`,
			e.JobID, int64(e.Seq), string(e.Payload.Event), e.Timestamp, payload)
		return err
	}, retry.Any(retry.DefaultRetryable, pgconn.SafeToRetry))
	if err != nil {
		return fmt.Errorf("archive entry %s/%d: %w", e.JobID, e.Seq, err)
	}
	return nil
}

// Recent возвращает до limit записей, новые первыми. Пустой jobID - все задачи.
func (a *Archive) Recent(ctx context.Context, jobID string, limit int) ([]job.ArchivedEntry, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT id, job_id, event, created_at, payload
		FROM log_entries
		WHERE $1 = '' OR job_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (job.ArchivedEntry, error) {
		var (
			e       job.ArchivedEntry
			event   string
			payload []byte
		)
		err := row.Scan(&e.ID, &e.JobID, &event, &e.Timestamp, &payload)
		e.Event = job.Event(event)
		e.Payload = json.RawMessage(payload)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan archive rows: %w", err)
	}
	if out == nil {
		out = []job.ArchivedEntry{}
	}
	return out, nil
}

// Ping проверяет доступность базы.
func (a *Archive) Ping(ctx context.Context) error {
	if err := HealthCheckPool(ctx, a.pool); err != nil {
		return errors.Join(errors.New("postgres archive unhealthy"), err)
	}
	return nil
}

// Close закрывает пул.
func (a *Archive) Close() error {
	a.pool.Close()
	return nil
}
