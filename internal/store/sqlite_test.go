package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willregister/admin-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testJob(records int) *model.UploadJob {
	data := make([]map[string]string, records)
	for i := range data {
		data[i] = map[string]string{
			"testatorName": "John Smith",
			"dob":          "15/03/1952",
			"address":      "12 Harbour Lane",
			"postcode":     "BS1 4DJ",
			"willLocation": "Office safe",
		}
	}
	return model.NewUploadJob("bulk_will_upload", "firm-1", "Jones & Co", "user-1", "Admin", "wills.csv", data)
}

// --- Jobs ---

func TestSQLite_CreateAndGetJob(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateJob(ctx, testJob(3))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := st.GetJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, got.Status)
	assert.Equal(t, 3, got.TotalRecords)
	assert.Len(t, got.Data, 3)
	assert.Len(t, got.ActivityLog, 1)
}

func TestSQLite_GetJob_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetJob(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListJobs_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateJob(ctx, testJob(1))
	require.NoError(t, err)
	other := testJob(1)
	other.FirmID = "firm-2"
	_, err = st.CreateJob(ctx, other)
	require.NoError(t, err)

	processing := model.JobStatusProcessing
	_, err = st.UpdateJob(ctx, a.ID, JobUpdate{Status: &processing})
	require.NoError(t, err)

	jobs, err := st.ListJobs(ctx, JobFilter{Status: model.JobStatusProcessing})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, a.ID, jobs[0].ID)

	jobs, err = st.ListJobs(ctx, JobFilter{FirmID: "firm-2"})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "firm-2", jobs[0].FirmID)
}

func TestSQLite_UpdateJob_Progress(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateJob(ctx, testJob(250))
	require.NoError(t, err)

	processing := model.JobStatusProcessing
	batch, processed, ok, failed := 1, 100, 98, 2
	updated, err := st.UpdateJob(ctx, created.ID, JobUpdate{
		Status:            &processing,
		CurrentBatch:      &batch,
		ProcessedRecords:  &processed,
		SuccessfulRecords: &ok,
		FailedRecords:     &failed,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentBatch)
	assert.Equal(t, 100, updated.ProcessedRecords)
	assert.Equal(t, 98, updated.SuccessfulRecords)
	assert.Equal(t, 2, updated.FailedRecords)
	assert.Len(t, updated.Data, 250, "payload untouched by progress updates")
}

func TestSQLite_UpdateJob_TerminalIsFrozen(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateJob(ctx, testJob(1))
	require.NoError(t, err)

	complete := model.JobStatusComplete
	now := time.Now().UTC()
	_, err = st.UpdateJob(ctx, created.ID, JobUpdate{Status: &complete, CompletedAt: &now, ClearData: true})
	require.NoError(t, err)

	processed := 99
	_, err = st.UpdateJob(ctx, created.ID, JobUpdate{ProcessedRecords: &processed})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrJobTerminal))

	got, err := st.GetJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ProcessedRecords)
	assert.Nil(t, got.Data)
}

func TestSQLite_AppendActivity(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateJob(ctx, testJob(1))
	require.NoError(t, err)

	require.NoError(t, st.AppendActivity(ctx, created.ID, "Processing started"))
	require.NoError(t, st.AppendActivity(ctx, created.ID, "Processed batch 1/1 (1/1 records)"))

	got, err := st.GetJob(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.ActivityLog, 3)
	assert.Equal(t, "Processed batch 1/1 (1/1 records)", got.ActivityLog[2].Message)
}

func TestSQLite_CancelJob(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateJob(ctx, testJob(150))
	require.NoError(t, err)

	processing := model.JobStatusProcessing
	processed := 100
	_, err = st.UpdateJob(ctx, created.ID, JobUpdate{Status: &processing, ProcessedRecords: &processed})
	require.NoError(t, err)

	cancelled, err := st.CancelJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCancelled, cancelled.Status)
	assert.False(t, cancelled.CanCancel)
	assert.True(t, cancelled.CanRetry)
	assert.Nil(t, cancelled.Data)
	assert.Equal(t, 100, cancelled.ProcessedRecords, "counters frozen as last recorded")
	assert.Contains(t, cancelled.ActivityLog[len(cancelled.ActivityLog)-1].Message, "cancelled")

	// Cancelling again fails.
	_, err = st.CancelJob(ctx, created.ID)
	require.Error(t, err)
}

func TestSQLite_RequeueJob(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.CreateJob(ctx, testJob(5))
	require.NoError(t, err)

	// Only failed jobs with retained data can be requeued.
	_, err = st.RequeueJob(ctx, created.ID)
	require.Error(t, err)

	failedStatus := model.JobStatusFailed
	now := time.Now().UTC()
	on, off := true, false
	processed := 3
	_, err = st.UpdateJob(ctx, created.ID, JobUpdate{
		Status: &failedStatus, CompletedAt: &now,
		ProcessedRecords: &processed, CanRetry: &on, CanCancel: &off,
	})
	require.NoError(t, err)

	requeued, err := st.RequeueJob(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, requeued.Status)
	assert.Equal(t, 0, requeued.ProcessedRecords)
	assert.Nil(t, requeued.CompletedAt)
	assert.True(t, requeued.CanCancel)
	assert.Len(t, requeued.Data, 5, "payload retained for the rerun")
}

func TestSQLite_CleanupJobs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	old, err := st.CreateJob(ctx, testJob(1))
	require.NoError(t, err)
	recent, err := st.CreateJob(ctx, testJob(1))
	require.NoError(t, err)
	running, err := st.CreateJob(ctx, testJob(1))
	require.NoError(t, err)

	complete := model.JobStatusComplete
	longAgo := time.Now().UTC().Add(-8 * 24 * time.Hour)
	_, err = st.UpdateJob(ctx, old.ID, JobUpdate{Status: &complete, CompletedAt: &longAgo})
	require.NoError(t, err)
	justNow := time.Now().UTC()
	_, err = st.UpdateJob(ctx, recent.ID, JobUpdate{Status: &complete, CompletedAt: &justNow})
	require.NoError(t, err)

	n, err := st.CleanupJobs(ctx, JobRetention)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = st.GetJob(ctx, old.ID)
	require.Error(t, err)
	_, err = st.GetJob(ctx, recent.ID)
	require.NoError(t, err)
	_, err = st.GetJob(ctx, running.ID)
	require.NoError(t, err, "non-terminal jobs are never auto-deleted")
}

// --- Wills ---

func TestSQLite_SaveAndCountWills(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	saved, err := st.SaveWill(ctx, model.Will{
		TestatorName: "John Smith",
		DOB:          "15/03/1952",
		Address:      "12 Harbour Lane",
		Postcode:     "BS1 4DJ",
		WillLocation: "Office safe",
		FirmID:       "firm-1",
		Status:       model.WillStatusActive,
		Source:       model.WillSourceBulk,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	n, err := st.CountWills(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_FindDuplicateWill(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.SaveWill(ctx, model.Will{
		TestatorName: "John Smith", DOB: "15/03/1952",
		Address: "12 Harbour Lane", Postcode: "BS1 4DJ", WillLocation: "Safe",
		FirmID: "firm-1", Status: model.WillStatusActive, Source: model.WillSourceSingle,
	})
	require.NoError(t, err)

	dup, err := st.FindDuplicateWill(ctx, "John Smith", "15/03/1952")
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, "John Smith", dup.TestatorName)

	none, err := st.FindDuplicateWill(ctx, "John Smith", "16/03/1952")
	require.NoError(t, err)
	assert.Nil(t, none, "exact name+DOB match only")
}
