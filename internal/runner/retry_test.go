package runner

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/willregister/admin-cli/internal/model"
)

func TestIsTransientDBError(t *testing.T) {
	assert.True(t, isTransientDBError(eris.New("sqlite: insert will: database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, isTransientDBError(eris.New("postgres: insert will: write: connection reset by peer")))
	assert.False(t, isTransientDBError(eris.New("sqlite: insert will: UNIQUE constraint failed: wills.id")))
	assert.False(t, isTransientDBError(nil))
}

func TestSaveWithRetry_TransientFailureRecovers(t *testing.T) {
	base := newTestStore(t)

	calls := 0
	st := &hookedStore{Store: base, saveWill: func(model.Will) error {
		calls++
		if calls < 3 {
			return eris.New("sqlite: insert will: database is locked (5) (SQLITE_BUSY)")
		}
		return nil
	}}

	saved, err := saveWithRetry(context.Background(), st, model.Will{
		TestatorName: "John Smith", DOB: "15/03/1952",
		Address: "12 Harbour Lane", Postcode: "BS1 4DJ", WillLocation: "Safe",
		FirmID: "firm-1", Status: model.WillStatusActive, Source: model.WillSourceBulk,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, 3, calls)
}

func TestSaveWithRetry_PermanentFailureIsImmediate(t *testing.T) {
	base := newTestStore(t)

	calls := 0
	st := &hookedStore{Store: base, saveWill: func(model.Will) error {
		calls++
		return eris.New("sqlite: insert will: UNIQUE constraint failed: wills.id")
	}}

	_, err := saveWithRetry(context.Background(), st, model.Will{TestatorName: "John Smith"}, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, 1, calls, "constraint violations are not retried")
}
