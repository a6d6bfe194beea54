package model

import (
	"fmt"
	"math"
	"time"
)

// BatchSize is the fixed number of records processed per runner batch.
const BatchSize = 100

// JobStatus represents the current state of an upload job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether a job status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed || s == JobStatusCancelled
}

// RecordError captures one record that failed to persist during a job run.
type RecordError struct {
	Row    int               `json:"row"`
	Reason string            `json:"reason"`
	Data   map[string]string `json:"data,omitempty"`
}

// ActivityEntry is one timestamped line in a job's activity log.
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// UploadJob is one user-confirmed bulk import. It is the unit of persisted
// truth from confirmation onward: the validated records are copied into Data
// at creation and cleared once the job completes or is cancelled.
type UploadJob struct {
	ID                string              `json:"id"`
	Type              string              `json:"type"`
	FirmID            string              `json:"firm_id"`
	FirmName          string              `json:"firm_name"`
	UserID            string              `json:"user_id"`
	UserName          string              `json:"user_name"`
	FileName          string              `json:"file_name"`
	TotalRecords      int                 `json:"total_records"`
	Status            JobStatus           `json:"status"`
	ProcessedRecords  int                 `json:"processed_records"`
	SuccessfulRecords int                 `json:"successful_records"`
	FailedRecords     int                 `json:"failed_records"`
	CurrentBatch      int                 `json:"current_batch"`
	TotalBatches      int                 `json:"total_batches"`
	StartedAt         time.Time           `json:"started_at"`
	CompletedAt       *time.Time          `json:"completed_at,omitempty"`
	Duration          string              `json:"duration,omitempty"`
	Errors            []RecordError       `json:"errors"`
	Data              []map[string]string `json:"data,omitempty"`
	CanCancel         bool                `json:"can_cancel"`
	CanRetry          bool                `json:"can_retry"`
	ActivityLog       []ActivityEntry     `json:"activity_log"`
}

// NewUploadJob builds a queued job holding the confirmed record payload.
func NewUploadJob(jobType, firmID, firmName, userID, userName, fileName string, records []map[string]string) *UploadJob {
	now := time.Now().UTC()
	return &UploadJob{
		Type:         jobType,
		FirmID:       firmID,
		FirmName:     firmName,
		UserID:       userID,
		UserName:     userName,
		FileName:     fileName,
		TotalRecords: len(records),
		Status:       JobStatusQueued,
		TotalBatches: TotalBatches(len(records)),
		StartedAt:    now,
		Errors:       []RecordError{},
		Data:         records,
		CanCancel:    true,
		ActivityLog: []ActivityEntry{
			{Timestamp: now, Message: fmt.Sprintf("Job created: %d records from %s", len(records), fileName)},
		},
	}
}

// TotalBatches returns the number of fixed-size batches needed for n records.
func TotalBatches(n int) int {
	return int(math.Ceil(float64(n) / float64(BatchSize)))
}

// FormatDuration renders an elapsed time as "XmYYs" for the job summary.
func FormatDuration(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%dm%02ds", secs/60, secs%60)
}
