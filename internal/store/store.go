package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/willregister/admin-cli/internal/model"
)

// JobRetention is how long terminal jobs are kept before cleanup deletes them.
const JobRetention = 7 * 24 * time.Hour

// ErrJobTerminal is returned when an update targets a job already in a
// terminal state.
var ErrJobTerminal = eris.New("store: job is in a terminal state")

// JobFilter specifies criteria for listing upload jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	FirmID string          `json:"firm_id,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// JobUpdate is a partial update applied to a live job. Nil fields are left
// untouched. ClearData drops the bulk record payload.
type JobUpdate struct {
	Status            *model.JobStatus
	ProcessedRecords  *int
	SuccessfulRecords *int
	FailedRecords     *int
	CurrentBatch      *int
	CompletedAt       *time.Time
	Duration          *string
	Errors            []model.RecordError
	CanCancel         *bool
	CanRetry          *bool
	ClearData         bool
}

// Store defines the persistence interface for upload jobs and the will
// register the runner writes into.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job *model.UploadJob) (*model.UploadJob, error)
	GetJob(ctx context.Context, jobID string) (*model.UploadJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.UploadJob, error)
	UpdateJob(ctx context.Context, jobID string, update JobUpdate) (*model.UploadJob, error)
	AppendActivity(ctx context.Context, jobID string, message string) error
	CancelJob(ctx context.Context, jobID string) (*model.UploadJob, error)
	RequeueJob(ctx context.Context, jobID string) (*model.UploadJob, error)
	CleanupJobs(ctx context.Context, olderThan time.Duration) (int, error)

	// Wills
	SaveWill(ctx context.Context, will model.Will) (*model.Will, error)
	CountWills(ctx context.Context) (int, error)
	FindDuplicateWill(ctx context.Context, testatorName, dob string) (*model.Will, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// New opens a Store for the configured driver.
func New(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// applyUpdate merges a partial update into a loaded job, enforcing the
// terminal invariant: once a job is complete, failed, or cancelled its status
// and counters are frozen.
func applyUpdate(job *model.UploadJob, update JobUpdate) error {
	if job.Status.Terminal() {
		return eris.Wrapf(ErrJobTerminal, "job %s is %s", job.ID, job.Status)
	}
	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.ProcessedRecords != nil {
		job.ProcessedRecords = *update.ProcessedRecords
	}
	if update.SuccessfulRecords != nil {
		job.SuccessfulRecords = *update.SuccessfulRecords
	}
	if update.FailedRecords != nil {
		job.FailedRecords = *update.FailedRecords
	}
	if update.CurrentBatch != nil {
		job.CurrentBatch = *update.CurrentBatch
	}
	if update.CompletedAt != nil {
		job.CompletedAt = update.CompletedAt
	}
	if update.Duration != nil {
		job.Duration = *update.Duration
	}
	if update.Errors != nil {
		job.Errors = update.Errors
	}
	if update.CanCancel != nil {
		job.CanCancel = *update.CanCancel
	}
	if update.CanRetry != nil {
		job.CanRetry = *update.CanRetry
	}
	if update.ClearData {
		job.Data = nil
	}
	return nil
}

// cancelInPlace applies the cancellation contract to a loaded job: counters
// stay exactly as last recorded, the payload is cleared, and retry opens up.
func cancelInPlace(job *model.UploadJob) error {
	if job.Status.Terminal() {
		return eris.Wrapf(ErrJobTerminal, "job %s is %s", job.ID, job.Status)
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusCancelled
	job.CompletedAt = &now
	job.Data = nil
	job.CanCancel = false
	job.CanRetry = true
	job.ActivityLog = append(job.ActivityLog, model.ActivityEntry{
		Timestamp: now,
		Message:   "Job cancelled by user",
	})
	return nil
}

// requeueInPlace resets a failed job for another run. Only failed jobs keep
// their record payload, so only they can be requeued.
func requeueInPlace(job *model.UploadJob) error {
	if job.Status != model.JobStatusFailed || !job.CanRetry {
		return eris.Errorf("store: job %s cannot be retried (status %s)", job.ID, job.Status)
	}
	if len(job.Data) == 0 {
		return eris.Errorf("store: job %s has no retained records to retry", job.ID)
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusQueued
	job.ProcessedRecords = 0
	job.SuccessfulRecords = 0
	job.FailedRecords = 0
	job.CurrentBatch = 0
	job.CompletedAt = nil
	job.Duration = ""
	job.Errors = []model.RecordError{}
	job.CanCancel = true
	job.CanRetry = false
	job.ActivityLog = append(job.ActivityLog, model.ActivityEntry{
		Timestamp: now,
		Message:   "Retry requested, job requeued",
	})
	return nil
}
