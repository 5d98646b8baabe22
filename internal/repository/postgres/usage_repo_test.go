package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parserator/internal/domain"
)

func TestUsageRepo_Reserve_CountsOnlyLiveReservations(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUsageRepo(db, 5*time.Minute)
	accountID := uuid.New()
	now := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT monthly_usage_count, last_reset_at FROM accounts WHERE id = \$1 FOR UPDATE`).
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"monthly_usage_count", "last_reset_at"}).AddRow(98, april))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM quota_reservations WHERE account_id = \$1 AND expires_at > \$2`).
		WithArgs(accountID, now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO quota_reservations`).
		WithArgs(sqlmock.AnyArg(), accountID, now, now.Add(5*time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	usage, err := repo.Reserve(context.Background(), accountID, 100, now)

	require.NoError(t, err)
	assert.Equal(t, 98, usage.Count)
	assert.Equal(t, 2, usage.InFlight)
	assert.NotEqual(t, uuid.Nil, usage.ReservationID)
	assert.Equal(t, 0, usage.Remaining())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepo_Reserve_ExceededTakesNoReservation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUsageRepo(db, 5*time.Minute)
	accountID := uuid.New()
	now := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT monthly_usage_count, last_reset_at FROM accounts`).
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"monthly_usage_count", "last_reset_at"}).AddRow(99, april))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM quota_reservations`).
		WithArgs(accountID, now).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	usage, err := repo.Reserve(context.Background(), accountID, 100, now)

	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	require.NotNil(t, usage)
	assert.Equal(t, uuid.Nil, usage.ReservationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepo_Reserve_RollsOverBeforeCounting(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUsageRepo(db, time.Minute)
	accountID := uuid.New()
	now := time.Date(2025, 5, 1, 0, 0, 5, 0, time.UTC)
	april := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	may := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT monthly_usage_count, last_reset_at FROM accounts`).
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"monthly_usage_count", "last_reset_at"}).AddRow(100, april))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM quota_reservations`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE accounts SET monthly_usage_count = 0`).
		WithArgs(may, accountID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO quota_reservations`).
		WithArgs(sqlmock.AnyArg(), accountID, now, now.Add(time.Minute)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	usage, err := repo.Reserve(context.Background(), accountID, 100, now)

	require.NoError(t, err)
	assert.Equal(t, 0, usage.Count)
	assert.True(t, may.Equal(usage.LastResetAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepo_Settle(t *testing.T) {
	accountID := uuid.New()
	reservationID := uuid.New()

	t.Run("counted increments", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUsageRepo(db, time.Minute)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM quota_reservations WHERE id = \$1`).
			WithArgs(reservationID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE accounts SET monthly_usage_count = monthly_usage_count \+ 1`).
			WithArgs(accountID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, repo.Settle(context.Background(), accountID, reservationID, true))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("uncounted only releases", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUsageRepo(db, time.Minute)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM quota_reservations WHERE id = \$1`).
			WithArgs(reservationID).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		require.NoError(t, repo.Settle(context.Background(), accountID, reservationID, false))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUsageRepo_PurgeExpiredReservations(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUsageRepo(db, time.Minute)
	now := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM quota_reservations WHERE expires_at <= \$1`).
		WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.PurgeExpiredReservations(context.Background(), now)

	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
