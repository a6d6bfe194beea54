// Package runner executes upload jobs as a cooperative batch loop: records
// are persisted in fixed-size chunks, progress is written to the job store
// after every chunk, and the loop yields between chunks so callers polling
// the store stay responsive.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/willregister/admin-cli/internal/model"
	"github.com/willregister/admin-cli/internal/store"
)

// DefaultBatchRate is the pacing applied between batches. The wait between
// chunks is the yield that keeps a host event loop interactive; it is a
// correctness requirement, not tuning.
const DefaultBatchRate = rate.Limit(5)

// Runner processes upload jobs against a Store.
type Runner struct {
	store  store.Store
	pacer  *rate.Limiter
	logger *zap.Logger
}

// New creates a Runner with the default inter-batch pacing.
func New(st store.Store) *Runner {
	return &Runner{
		store:  st,
		pacer:  rate.NewLimiter(DefaultBatchRate, 1),
		logger: zap.L(),
	}
}

// NewWithRate creates a Runner with custom pacing, for tests.
func NewWithRate(st store.Store, limit rate.Limit) *Runner {
	r := New(st)
	r.pacer = rate.NewLimiter(limit, 1)
	return r
}

// Run executes one job to a terminal state. Per-record persistence failures
// are captured in the job's error list and never abort the run; only a fault
// in the loop itself (a store that cannot record progress) marks the job
// failed. Cancellation is observed between batches: an in-flight batch
// always finishes and its records are kept.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusQueued {
		return eris.Errorf("runner: job %s is %s, expected queued", jobID, job.Status)
	}

	log := r.logger.With(zap.String("job_id", jobID), zap.String("file", job.FileName))

	processing := model.JobStatusProcessing
	if _, err := r.store.UpdateJob(ctx, jobID, store.JobUpdate{Status: &processing}); err != nil {
		return eris.Wrap(err, "runner: mark processing")
	}
	if err := r.store.AppendActivity(ctx, jobID, "Processing started"); err != nil {
		return r.fail(ctx, jobID, log, err)
	}

	records := job.Data
	total := job.TotalRecords
	totalBatches := job.TotalBatches
	log.Info("job started",
		zap.Int("records", total),
		zap.Int("batches", totalBatches),
	)

	started := time.Now()
	successful, failed := 0, 0
	recordErrors := []model.RecordError{}

	for batch := 0; batch*model.BatchSize < len(records); batch++ {
		cancelled, err := r.isCancelled(ctx, jobID)
		if err != nil {
			return r.fail(ctx, jobID, log, err)
		}
		if cancelled {
			log.Info("job cancelled, stopping before next batch",
				zap.Int("processed", successful+failed),
			)
			return nil
		}

		start := batch * model.BatchSize
		end := min(start+model.BatchSize, len(records))

		for i, record := range records[start:end] {
			row := start + i + 1
			if err := r.saveRecord(ctx, job, record, row, log); err != nil {
				failed++
				recordErrors = append(recordErrors, model.RecordError{
					Row:    row,
					Reason: err.Error(),
					Data:   record,
				})
			} else {
				successful++
			}
		}

		current := batch + 1
		processed := min(current*model.BatchSize, total)
		update := store.JobUpdate{
			CurrentBatch:      &current,
			ProcessedRecords:  &processed,
			SuccessfulRecords: &successful,
			FailedRecords:     &failed,
			Errors:            recordErrors,
		}
		if _, err := r.store.UpdateJob(ctx, jobID, update); err != nil {
			if eris.Is(err, store.ErrJobTerminal) {
				// Cancelled mid-batch: the batch's records are kept, the
				// frozen counters are not rewound.
				log.Info("job reached terminal state during batch, stopping")
				return nil
			}
			return r.fail(ctx, jobID, log, err)
		}
		msg := fmt.Sprintf("Processed batch %d/%d (%d/%d records)", current, totalBatches, processed, total)
		if err := r.store.AppendActivity(ctx, jobID, msg); err != nil {
			return r.fail(ctx, jobID, log, err)
		}

		// Yield before the next chunk.
		if err := r.pacer.Wait(ctx); err != nil {
			return r.fail(ctx, jobID, log, eris.Wrap(err, "runner: interrupted between batches"))
		}
	}

	return r.complete(ctx, jobID, log, started, successful, failed, recordErrors)
}

// Retry requeues a failed job and runs it again from its retained payload.
func (r *Runner) Retry(ctx context.Context, jobID string) error {
	if _, err := r.store.RequeueJob(ctx, jobID); err != nil {
		return err
	}
	return r.Run(ctx, jobID)
}

// saveRecord persists one record, logging (not rejecting) exact name+DOB
// duplicates already on the register.
func (r *Runner) saveRecord(ctx context.Context, job *model.UploadJob, record map[string]string, row int, log *zap.Logger) error {
	will := model.WillFromRecord(record, job.FirmID, model.WillSourceBulk)

	if dup, err := r.store.FindDuplicateWill(ctx, will.TestatorName, will.DOB); err == nil && dup != nil {
		log.Warn("possible duplicate will",
			zap.Int("row", row),
			zap.String("testator", will.TestatorName),
			zap.String("existing_id", dup.ID),
		)
		_ = r.store.AppendActivity(ctx, job.ID,
			fmt.Sprintf("Row %d: possible duplicate of existing will %s (%s)", row, dup.ID, will.TestatorName))
	}

	_, err := saveWithRetry(ctx, r.store, will, log)
	return err
}

func (r *Runner) isCancelled(ctx context.Context, jobID string) (bool, error) {
	current, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return current.Status == model.JobStatusCancelled, nil
}

func (r *Runner) complete(ctx context.Context, jobID string, log *zap.Logger, started time.Time, successful, failed int, recordErrors []model.RecordError) error {
	now := time.Now().UTC()
	duration := model.FormatDuration(time.Since(started))
	status := model.JobStatusComplete
	off := false
	processed := successful + failed

	update := store.JobUpdate{
		Status:            &status,
		ProcessedRecords:  &processed,
		SuccessfulRecords: &successful,
		FailedRecords:     &failed,
		CompletedAt:       &now,
		Duration:          &duration,
		Errors:            recordErrors,
		CanCancel:         &off,
		CanRetry:          &off,
		ClearData:         true,
	}
	if _, err := r.store.UpdateJob(ctx, jobID, update); err != nil {
		if eris.Is(err, store.ErrJobTerminal) {
			log.Info("job already terminal at completion")
			return nil
		}
		return eris.Wrap(err, "runner: mark complete")
	}

	msg := fmt.Sprintf("Job complete in %s: %d succeeded, %d failed", duration, successful, failed)
	if err := r.store.AppendActivity(ctx, jobID, msg); err != nil {
		return eris.Wrap(err, "runner: append completion activity")
	}
	log.Info("job complete",
		zap.Int("successful", successful),
		zap.Int("failed", failed),
		zap.String("duration", duration),
	)
	return nil
}

// fail marks the job failed after a runner-level fault. The record payload
// is kept so the job can be retried.
func (r *Runner) fail(ctx context.Context, jobID string, log *zap.Logger, cause error) error {
	now := time.Now().UTC()
	status := model.JobStatusFailed
	off, on := false, true

	update := store.JobUpdate{
		Status:      &status,
		CompletedAt: &now,
		CanCancel:   &off,
		CanRetry:    &on,
	}
	if _, err := r.store.UpdateJob(ctx, jobID, update); err != nil && !eris.Is(err, store.ErrJobTerminal) {
		log.Error("could not mark job failed", zap.Error(err))
	}
	_ = r.store.AppendActivity(ctx, jobID, fmt.Sprintf("Job failed: %s", cause.Error()))

	log.Error("job failed", zap.Error(cause))
	return cause
}
