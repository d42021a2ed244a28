package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobrelay/internal/domain/job"
	"jobrelay/pkg/retry"
)

// Archive хранит копии записей журнала в SQLite.
type Archive struct {
	db    *sql.DB
	retry retry.Config
	log   *slog.Logger
}

// NewArchive применяет миграции к dbPath и открывает архив.
func NewArchive(ctx context.Context, dbPath string, log *slog.Logger) (*Archive, error) {
	if log == nil {
		log = slog.Default()
	}
	version, err := ApplyMigrations(dbPath)
	if err != nil {
		return nil, err
	}
	db, err := Open(ctx, dbPath, DefaultDBOptions())
	if err != nil {
		return nil, err
	}
	log.Info("sqlite archive opened", "path", dbPath, "schema_version", version)
	return &Archive{db: db, retry: retry.StorageConfig(), log: log}, nil
}

// Archive сохраняет запись; при SQLITE_BUSY запись повторяется.
func (a *Archive) Archive(ctx context.Context, e job.Entry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	err = retry.DoWithRetryable(ctx, a.retry, func(ctx context.Context) error {
		_, err := a.db.ExecContext(ctx,
			`INSERT INTO log_entries (job_id, seq, event, ts_ms, payload) VALUES (?, ?, ?, ?, ?)`,
			e.JobID, int64(e.Seq), string(e.Payload.Event), e.Timestamp.UnixMilli(), string(payload))
		return err
	}, isBusy)
	if err != nil {
		return fmt.Errorf("archive entry %s/%d: %w", e.JobID, e.Seq, err)
	}
	return nil
}

// Recent возвращает до limit записей, новые первыми. Пустой jobID - все задачи.
func (a *Archive) Recent(ctx context.Context, jobID string, limit int) ([]job.ArchivedEntry, error) {
	query := `SELECT id, job_id, event, ts_ms, payload FROM log_entries`
	args := []any{}
	if jobID != "" {
		query += ` WHERE job_id = ?`
		args = append(args, jobID)
	}
	query += ` ORDER BY ts_ms DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	out := []job.ArchivedEntry{}
	for rows.Next() {
		var (
			e       job.ArchivedEntry
			event   string
			tsMs    int64
			payload string
		)
		if err := rows.Scan(&e.ID, &e.JobID, &event, &tsMs, &payload); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		e.Event = job.Event(event)
		e.Timestamp = time.UnixMilli(tsMs).UTC()
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}
	return out, nil
}

// Close закрывает базу.
func (a *Archive) Close() error { return a.db.Close() }

// isBusy сообщает, заблокирована ли база другим писателем.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") ||
		strings.Contains(s, "SQLITE_BUSY") ||
		strings.Contains(s, "database table is locked")
}
