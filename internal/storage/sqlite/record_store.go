// Package sqlite provides a SQLite implementation of the record archive,
// suited to single-machine merged datasets.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/coglab/selfconstruct/internal/storage"
	"github.com/coglab/selfconstruct/pkg/types"
)

// Schema is the archive schema, applied idempotently on open.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id           TEXT PRIMARY KEY,
	started_at       TEXT NOT NULL,
	template_version TEXT NOT NULL DEFAULT '',
	query_count      INTEGER NOT NULL DEFAULT 0,
	architectures    TEXT NOT NULL DEFAULT '[]',
	conditions       TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS records (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	architecture   TEXT NOT NULL,
	condition      TEXT NOT NULL,
	query_index    INTEGER NOT NULL,
	prompt         TEXT NOT NULL,
	response       TEXT NOT NULL,
	word_count     INTEGER NOT NULL,
	timestamp      TEXT NOT NULL,
	failed         INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
CREATE INDEX IF NOT EXISTS idx_records_cell ON records(architecture, condition);
`

// RecordStore implements storage.RecordStore using SQLite.
type RecordStore struct {
	db *sql.DB
}

var _ storage.RecordStore = (*RecordStore)(nil)

// NewRecordStore opens a SQLite archive, configures WAL mode, and creates the
// schema.
func NewRecordStore(dsn string) (*RecordStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors; WAL mode lets readers
	// proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &RecordStore{db: db}, nil
}

// SaveRun stores a run and its records. Saving an existing run ID replaces
// its records, so re-importing a run file is idempotent.
func (s *RecordStore) SaveRun(ctx context.Context, run *types.Run) error {
	if run == nil {
		return storage.ErrInvalidInput
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	arches, err := json.Marshal(run.Meta.Architectures)
	if err != nil {
		return fmt.Errorf("sqlite: failed to encode architectures: %w", err)
	}
	conditions, err := json.Marshal(run.Meta.Conditions)
	if err != nil {
		return fmt.Errorf("sqlite: failed to encode conditions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, template_version, query_count, architectures, conditions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			started_at = excluded.started_at,
			template_version = excluded.template_version,
			query_count = excluded.query_count,
			architectures = excluded.architectures,
			conditions = excluded.conditions`,
		run.Meta.RunID, run.Meta.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Meta.TemplateVersion, run.Meta.QueryCount, string(arches), string(conditions))
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE run_id = ?`, run.Meta.RunID); err != nil {
		return fmt.Errorf("sqlite: failed to clear old records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (run_id, architecture, condition, query_index, prompt, response, word_count, timestamp, failed, failure_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range run.Records {
		_, err := stmt.ExecContext(ctx,
			run.Meta.RunID, rec.Architecture, rec.ConditionLabel, rec.QueryIndex,
			rec.Prompt, rec.Response, rec.WordCount,
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			boolToInt(rec.Failed), rec.FailureReason)
		if err != nil {
			return fmt.Errorf("sqlite: failed to insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run with its records in collection order.
func (s *RecordStore) GetRun(ctx context.Context, runID string) (*types.Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("%w: run ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, template_version, query_count, architectures, conditions
		FROM runs WHERE run_id = ?`, runID)

	meta, err := scanMeta(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, architecture, condition, query_index, prompt, response, word_count, timestamp, failed, failure_reason
		FROM records WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query records: %w", err)
	}
	defer rows.Close()

	run := &types.Run{Meta: meta}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		run.Records = append(run.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate records: %w", err)
	}
	return run, nil
}

// ListRuns returns the metadata of every archived run, newest first.
func (s *RecordStore) ListRuns(ctx context.Context) ([]types.RunMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, template_version, query_count, architectures, conditions
		FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query runs: %w", err)
	}
	defer rows.Close()

	var metas []types.RunMeta
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate runs: %w", err)
	}
	return metas, nil
}

// CellRecords returns every archived record for one cell across all runs.
func (s *RecordStore) CellRecords(ctx context.Context, key types.CellKey) ([]types.ResponseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, architecture, condition, query_index, prompt, response, word_count, timestamp, failed, failure_reason
		FROM records WHERE architecture = ? AND condition = ?
		ORDER BY run_id, query_index`, key.Architecture, key.ConditionLabel)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query cell records: %w", err)
	}
	defer rows.Close()

	var records []types.ResponseRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to iterate cell records: %w", err)
	}
	return records, nil
}

// Close releases the database connection.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(row scanner) (types.RunMeta, error) {
	var meta types.RunMeta
	var startedAt, arches, conditions string

	if err := row.Scan(&meta.RunID, &startedAt, &meta.TemplateVersion, &meta.QueryCount, &arches, &conditions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RunMeta{}, err
		}
		return types.RunMeta{}, fmt.Errorf("sqlite: failed to scan run: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return types.RunMeta{}, fmt.Errorf("sqlite: bad started_at %q: %w", startedAt, err)
	}
	meta.StartedAt = ts

	if err := json.Unmarshal([]byte(arches), &meta.Architectures); err != nil {
		return types.RunMeta{}, fmt.Errorf("sqlite: bad architectures column: %w", err)
	}
	if err := json.Unmarshal([]byte(conditions), &meta.Conditions); err != nil {
		return types.RunMeta{}, fmt.Errorf("sqlite: bad conditions column: %w", err)
	}
	return meta, nil
}

func scanRecord(row scanner) (types.ResponseRecord, error) {
	var rec types.ResponseRecord
	var timestamp string
	var failed int

	err := row.Scan(&rec.RunID, &rec.Architecture, &rec.ConditionLabel, &rec.QueryIndex,
		&rec.Prompt, &rec.Response, &rec.WordCount, &timestamp, &failed, &rec.FailureReason)
	if err != nil {
		return types.ResponseRecord{}, fmt.Errorf("sqlite: failed to scan record: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return types.ResponseRecord{}, fmt.Errorf("sqlite: bad timestamp %q: %w", timestamp, err)
	}
	rec.Timestamp = ts
	rec.Failed = failed != 0
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
