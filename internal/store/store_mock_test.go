package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grantwatch/internal/models"
	"grantwatch/pkg/logger"
)

var errDisk = errors.New("disk I/O error")

func mockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "failed to create sqlmock")
	t.Cleanup(func() { db.Close() })
	return New(db, logger.NewNop()), mock
}

func TestUpsert_SelectFailureRollsBack(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, timestamp FROM grants").
		WithArgs("https://x.org").
		WillReturnError(errDisk)
	mock.ExpectRollback()

	out, err := s.Upsert(context.Background(), "https://x.org", models.StatusOpen, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, errDisk)
	assert.Equal(t, models.OutcomeSkipped, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_InsertFailureNotCommitted(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, timestamp FROM grants").
		WithArgs("https://x.org").
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}))
	mock.ExpectExec("INSERT INTO grants").
		WithArgs("https://x.org", "open", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errDisk)
	mock.ExpectRollback()

	_, err := s.Upsert(context.Background(), "https://x.org", models.StatusOpen, time.Now())
	assert.ErrorIs(t, err, ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_UpdatesExistingRow(t *testing.T) {
	s, mock := mockStore(t)
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, timestamp FROM grants").
		WithArgs("https://x.org").
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}).AddRow(7, "2024-01-01T00:00:00Z"))
	mock.ExpectExec("UPDATE grants SET status").
		WithArgs("closed", "2024-02-01T00:00:00Z", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := s.Upsert(context.Background(), "https://x.org", models.StatusClosed, now)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUpdated, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_CommitFailure(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, timestamp FROM grants").
		WillReturnRows(sqlmock.NewRows([]string{"id", "timestamp"}))
	mock.ExpectExec("INSERT INTO grants").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit().WillReturnError(errDisk)

	_, err := s.Upsert(context.Background(), "https://x.org", models.StatusOpen, time.Now())
	assert.ErrorIs(t, err, ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_ValidationTouchesNothing(t *testing.T) {
	s, mock := mockStore(t)

	out, err := s.Upsert(context.Background(), "", models.StatusOpen, time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRange_ResyncFailureRollsBack(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM grants WHERE id BETWEEN").
		WithArgs(int64(3), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("UPDATE sqlite_sequence").WillReturnError(errDisk)
	mock.ExpectRollback()

	deleted, err := s.DeleteRange(context.Background(), 3, 5)
	assert.ErrorIs(t, err, ErrStore)
	assert.Zero(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRange_NothingDeletedSkipsResync(t *testing.T) {
	s, mock := mockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM grants WHERE id BETWEEN").
		WithArgs(int64(10), int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	deleted, err := s.DeleteRange(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRange_BeginFailure(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectBegin().WillReturnError(errDisk)

	_, err := s.DeleteRange(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrStore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestList_QueryFailure(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery("SELECT id, url, status FROM grants").WillReturnError(errDisk)

	list, err := s.List(context.Background())
	assert.ErrorIs(t, err, ErrStore)
	assert.Nil(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExists_QueryFailure(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectQuery("SELECT 1 FROM grants").WithArgs("https://x.org").WillReturnError(errDisk)

	ok, err := s.Exists(context.Background(), "https://x.org")
	assert.ErrorIs(t, err, ErrStore)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByID_Failure(t *testing.T) {
	s, mock := mockStore(t)
	mock.ExpectExec("DELETE FROM grants WHERE id =").WithArgs(int64(4)).WillReturnError(errDisk)

	ok, err := s.DeleteByID(context.Background(), 4)
	assert.ErrorIs(t, err, ErrStore)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
