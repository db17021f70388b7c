package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vin-jex/queuectl/internal/store"
)

// A claimer that loses the row between its select and its guarded update
// must report "no job" and still commit.
func TestClaimLosingRaceReturnsNoJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewFromDB(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id\s+FROM jobs`).
		WithArgs(store.JobPending, now.Unix()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("contended"))
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobProcessing, formatTime(now), now.Unix(), "contended", store.JobPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	job, err := s.ClaimNextPendingJob(context.Background(), now, 0)
	require.NoError(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimSurfacesStorageFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewFromDB(db)
	driverErr := errors.New("database is locked")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id\s+FROM jobs`).WillReturnError(driverErr)
	mock.ExpectRollback()

	job, err := s.ClaimNextPendingJob(context.Background(), time.Now(), 0)
	assert.Nil(t, job)
	assert.ErrorIs(t, err, store.ErrUnavailable)
	assert.ErrorIs(t, err, driverErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
