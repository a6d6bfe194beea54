package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalBatches(t *testing.T) {
	assert.Equal(t, 0, TotalBatches(0))
	assert.Equal(t, 1, TotalBatches(1))
	assert.Equal(t, 1, TotalBatches(100))
	assert.Equal(t, 2, TotalBatches(101))
	assert.Equal(t, 3, TotalBatches(250))
}

func TestNewUploadJob(t *testing.T) {
	records := make([]map[string]string, 250)
	for i := range records {
		records[i] = map[string]string{"testatorName": "John Smith"}
	}

	job := NewUploadJob("bulk_will_upload", "firm-1", "Jones & Co", "user-1", "Admin", "wills.csv", records)

	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 250, job.TotalRecords)
	assert.Equal(t, 3, job.TotalBatches)
	assert.True(t, job.CanCancel)
	assert.False(t, job.CanRetry)
	assert.Len(t, job.Data, 250)
	require.Len(t, job.ActivityLog, 1)
	assert.Contains(t, job.ActivityLog[0].Message, "250 records")
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.True(t, JobStatusComplete.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m05s", FormatDuration(5*time.Second))
	assert.Equal(t, "1m30s", FormatDuration(90*time.Second))
	assert.Equal(t, "12m00s", FormatDuration(12*time.Minute))
}
