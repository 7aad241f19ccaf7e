// Package storage persists collected runs. The canonical artifact is the JSON
// run file written at collection time; the archive stores exist for merged,
// queryable datasets and implement the same small interface so SQLite and
// PostgreSQL backends are interchangeable.
package storage

import (
	"context"
	"errors"

	"github.com/coglab/selfconstruct/pkg/types"
)

// Common storage errors.
var (
	// ErrNotFound is returned when a requested run does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("storage: invalid input")
)

// RecordStore archives runs and their response records.
type RecordStore interface {
	// SaveRun stores a run's metadata and records (upsert on run ID: saving
	// the same run twice replaces its records).
	SaveRun(ctx context.Context, run *types.Run) error

	// GetRun retrieves a run with its records in collection order.
	// Returns ErrNotFound if the run doesn't exist.
	GetRun(ctx context.Context, runID string) (*types.Run, error)

	// ListRuns returns the metadata of every archived run, newest first.
	ListRuns(ctx context.Context) ([]types.RunMeta, error)

	// CellRecords returns every archived record for one (architecture,
	// condition) cell across all runs, ordered by run and query index.
	CellRecords(ctx context.Context, key types.CellKey) ([]types.ResponseRecord, error)

	// Close releases any resources held by the store.
	Close() error
}
