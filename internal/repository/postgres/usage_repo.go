package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"parserator/internal/domain"
	"parserator/internal/port"
)

const defaultReservationTTL = 5 * time.Minute

type usageRepo struct {
	db             *sqlx.DB
	reservationTTL time.Duration
}

// NewUsageRepo creates a new PostgreSQL-backed UsageRepository. The counter
// lives on the accounts row and every mutation locks that row. In-flight
// requests are rows in quota_reservations that stop counting after
// reservationTTL, so a reservation that is never settled cannot hold quota
// forever.
func NewUsageRepo(db *sqlx.DB, reservationTTL time.Duration) port.UsageRepository {
	if reservationTTL <= 0 {
		reservationTTL = defaultReservationTTL
	}
	return &usageRepo{db: db, reservationTTL: reservationTTL}
}

type usageRow struct {
	Count       int       `db:"monthly_usage_count"`
	LastResetAt time.Time `db:"last_reset_at"`
}

// rollover zeroes count when lastReset falls in an earlier calendar month than now.
func rollover(count int, lastReset, now time.Time) (int, time.Time, bool) {
	start := calendarMonthStart(now)
	if lastReset.UTC().Before(start) {
		return 0, start, true
	}
	return count, lastReset, false
}

func calendarMonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

func countLiveReservations(ctx context.Context, q queryer, accountID uuid.UUID, now time.Time) (int, error) {
	var n int
	err := q.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM quota_reservations WHERE account_id = $1 AND expires_at > $2",
		accountID, now.UTC())
	return n, err
}

func (r *usageRepo) Reserve(ctx context.Context, accountID uuid.UUID, limit int, now time.Time) (*domain.MonthlyUsage, error) {
	var usage *domain.MonthlyUsage
	exceeded := false

	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var row usageRow
		err := tx.GetContext(ctx, &row,
			"SELECT monthly_usage_count, last_reset_at FROM accounts WHERE id = $1 FOR UPDATE", accountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		inFlight, err := countLiveReservations(ctx, tx, accountID, now)
		if err != nil {
			return err
		}

		count, lastReset, rolled := rollover(row.Count, row.LastResetAt, now)
		usage = &domain.MonthlyUsage{Count: count, InFlight: inFlight, Limit: limit, LastResetAt: lastReset}
		if rolled {
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET monthly_usage_count = 0, last_reset_at = $1, updated_at = NOW()
				 WHERE id = $2`, lastReset, accountID); err != nil {
				return err
			}
		}

		if limit > 0 && count+inFlight >= limit {
			exceeded = true
			return nil
		}

		id := uuid.New()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO quota_reservations (id, account_id, created_at, expires_at)
			 VALUES ($1, $2, $3, $4)`,
			id, accountID, now.UTC(), now.UTC().Add(r.reservationTTL)); err != nil {
			return err
		}
		usage.InFlight++
		usage.ReservationID = id
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("usageRepo.Reserve: %w", err)
	}
	if exceeded {
		return usage, domain.ErrQuotaExceeded
	}
	return usage, nil
}

func (r *usageRepo) Release(ctx context.Context, reservationID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM quota_reservations WHERE id = $1", reservationID); err != nil {
		return fmt.Errorf("usageRepo.Release: %w", err)
	}
	return nil
}

// Settle counts even when the reservation already expired; the request did succeed.
func (r *usageRepo) Settle(ctx context.Context, accountID, reservationID uuid.UUID, counted bool) error {
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM quota_reservations WHERE id = $1", reservationID); err != nil {
			return err
		}
		if !counted {
			return nil
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE accounts SET monthly_usage_count = monthly_usage_count + 1, updated_at = NOW()
			 WHERE id = $1`, accountID)
		return err
	})
	if err != nil {
		return fmt.Errorf("usageRepo.Settle: %w", err)
	}
	return nil
}

func (r *usageRepo) Get(ctx context.Context, accountID uuid.UUID, limit int, now time.Time) (*domain.MonthlyUsage, error) {
	var row usageRow
	err := r.db.GetContext(ctx, &row,
		"SELECT monthly_usage_count, last_reset_at FROM accounts WHERE id = $1", accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("usageRepo.Get: %w", err)
	}
	inFlight, err := countLiveReservations(ctx, r.db, accountID, now)
	if err != nil {
		return nil, fmt.Errorf("usageRepo.Get: %w", err)
	}
	count, lastReset, _ := rollover(row.Count, row.LastResetAt, now)
	return &domain.MonthlyUsage{Count: count, InFlight: inFlight, Limit: limit, LastResetAt: lastReset}, nil
}

func (r *usageRepo) ResetMonthly(ctx context.Context, monthStart time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET monthly_usage_count = 0, last_reset_at = $1, updated_at = NOW()
		 WHERE last_reset_at < $1`, monthStart.UTC())
	if err != nil {
		return 0, fmt.Errorf("usageRepo.ResetMonthly: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

func (r *usageRepo) PurgeExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM quota_reservations WHERE expires_at <= $1", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("usageRepo.PurgeExpiredReservations: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
