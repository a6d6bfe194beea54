package runner

import (
	"context"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/willregister/admin-cli/internal/model"
	"github.com/willregister/admin-cli/internal/store"
)

const (
	saveAttempts   = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// saveWithRetry persists a will, retrying transient database contention
// before the record is given up on and captured as a job error. Context
// cancellation stops retries immediately.
func saveWithRetry(ctx context.Context, st store.Store, will model.Will, log *zap.Logger) (*model.Will, error) {
	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		saved, err := st.SaveWill(ctx, will)
		if err == nil {
			return saved, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isTransientDBError(err) {
			return nil, lastErr
		}
		if attempt >= saveAttempts-1 {
			break
		}

		log.Warn("retrying will save",
			zap.String("testator", will.TestatorName),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)

		timer := time.NewTimer(saveBackoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lastErr
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// isTransientDBError recognises contention and connection faults that a
// short backoff usually clears. Constraint violations and marshal errors
// are not retried.
func isTransientDBError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"database is locked",
		"database table is locked",
		"sqlite_busy",
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
		"conn closed",
		"too many clients",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// saveBackoff is exponential with jitter so concurrent writers back off at
// different moments.
func saveBackoff(attempt int) time.Duration {
	delay := float64(initialBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(maxBackoff) {
		delay = float64(maxBackoff)
	}
	delay *= 0.75 + rand.Float64()*0.5
	return time.Duration(delay)
}
