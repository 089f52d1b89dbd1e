package reliability

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/database"
	testingpkg "github.com/aristath/frontier/internal/testing"
)

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) Purge(context.Context) (int64, error) {
	f.calls++
	return 2, f.err
}

type fakeRotator struct {
	retention int
	calls     int
}

func (f *fakeRotator) RotateArchives(_ context.Context, retentionDays int) (int, error) {
	f.calls++
	f.retention = retentionDays
	return 0, nil
}

func TestDailyMaintenanceJob_Run(t *testing.T) {
	history, cleanupHistory := testingpkg.NewTestDB(t, "history")
	defer cleanupHistory()
	ledger, cleanupLedger := testingpkg.NewTestDB(t, "ledger")
	defer cleanupLedger()

	purger := &fakePurger{}
	rotator := &fakeRotator{}
	job := NewDailyMaintenanceJob(
		map[string]*database.DB{"history": history, "ledger": ledger},
		purger, rotator, 30, zerolog.Nop(),
	)

	assert.Equal(t, "daily_maintenance", job.Name())
	require.NoError(t, job.Run())
	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, 1, rotator.calls)
	assert.Equal(t, 30, rotator.retention)
}

func TestDailyMaintenanceJob_PurgeFailureIsNotFatal(t *testing.T) {
	cache, cleanup := testingpkg.NewTestDB(t, "cache")
	defer cleanup()

	job := NewDailyMaintenanceJob(
		map[string]*database.DB{"cache": cache},
		&fakePurger{err: errors.New("locked")}, nil, 0, zerolog.Nop(),
	)
	assert.NoError(t, job.Run())
}

func TestDailyMaintenanceJob_ClosedDatabaseFails(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "history")
	cleanup()

	rotator := &fakeRotator{}
	job := NewDailyMaintenanceJob(map[string]*database.DB{"history": db}, nil, rotator, 7, zerolog.Nop())
	assert.Error(t, job.Run())
	assert.Zero(t, rotator.calls, "maintenance stops at a failed health check")
}
