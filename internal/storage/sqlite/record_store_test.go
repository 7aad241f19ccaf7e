package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coglab/selfconstruct/internal/storage"
	"github.com/coglab/selfconstruct/pkg/types"
)

func newTestStore(t *testing.T) *RecordStore {
	t.Helper()

	store, err := NewRecordStore(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func archiveTestRun(t *testing.T, runID string) *types.Run {
	t.Helper()

	started := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	run := &types.Run{
		Meta: types.RunMeta{
			RunID:           runID,
			StartedAt:       started,
			Architectures:   []string{"claude"},
			Conditions:      []types.Condition{types.Baseline, types.FullMeta},
			TemplateVersion: "v2",
			QueryCount:      2,
		},
	}
	for _, cond := range run.Meta.Conditions {
		for i := 0; i < 2; i++ {
			rec, err := types.NewResponseRecord("claude", cond.Label, i, "prompt", "a response", started.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			rec.RunID = runID
			run.Records = append(run.Records, rec)
		}
	}
	return run
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := archiveTestRun(t, "run-1")
	run.Records[3] = types.NewFailedRecord("claude", "full_meta", 1, "prompt", "rate limited", run.Meta.StartedAt)
	run.Records[3].RunID = run.Meta.RunID

	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, run.Meta.RunID, got.Meta.RunID)
	assert.True(t, got.Meta.StartedAt.Equal(run.Meta.StartedAt))
	assert.Equal(t, run.Meta.Architectures, got.Meta.Architectures)
	assert.Equal(t, run.Meta.Conditions, got.Meta.Conditions)
	require.Len(t, got.Records, len(run.Records))

	for i := range run.Records {
		assert.Equal(t, run.Records[i].ConditionLabel, got.Records[i].ConditionLabel, "record %d", i)
		assert.Equal(t, run.Records[i].QueryIndex, got.Records[i].QueryIndex, "record %d", i)
		assert.Equal(t, run.Records[i].Failed, got.Records[i].Failed, "record %d", i)
		assert.True(t, got.Records[i].Timestamp.Equal(run.Records[i].Timestamp), "record %d", i)
	}
	assert.Equal(t, "rate limited", got.Records[3].FailureReason)
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSaveRunIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := archiveTestRun(t, "run-1")
	require.NoError(t, store.SaveRun(ctx, run))
	require.NoError(t, store.SaveRun(ctx, run))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got.Records, len(run.Records), "re-saving must not duplicate records")
}

func TestSaveRunRejectsInvalid(t *testing.T) {
	store := newTestStore(t)

	run := archiveTestRun(t, "run-1")
	run.Meta.RunID = ""

	err := store.SaveRun(context.Background(), run)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.SaveRun(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := archiveTestRun(t, "run-old")
	newer := archiveTestRun(t, "run-new")
	newer.Meta.StartedAt = older.Meta.StartedAt.Add(time.Hour)

	require.NoError(t, store.SaveRun(ctx, older))
	require.NoError(t, store.SaveRun(ctx, newer))

	metas, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "run-new", metas[0].RunID)
	assert.Equal(t, "run-old", metas[1].RunID)
}

func TestCellRecordsAcrossRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := archiveTestRun(t, "run-1")
	second := archiveTestRun(t, "run-2")
	require.NoError(t, store.SaveRun(ctx, first))
	require.NoError(t, store.SaveRun(ctx, second))

	records, err := store.CellRecords(ctx, types.CellKey{Architecture: "claude", ConditionLabel: "baseline"})
	require.NoError(t, err)
	assert.Len(t, records, 4, "2 baseline records from each run")

	for _, rec := range records {
		assert.Equal(t, "baseline", rec.ConditionLabel)
	}
}

func TestCellRecordsEmptyCell(t *testing.T) {
	store := newTestStore(t)

	records, err := store.CellRecords(context.Background(), types.CellKey{Architecture: "gemini", ConditionLabel: "baseline"})
	require.NoError(t, err)
	assert.Empty(t, records)
}
