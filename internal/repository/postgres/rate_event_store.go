package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"parserator/internal/domain"
	"parserator/internal/port"
)

type rateEventStore struct {
	db *sqlx.DB
}

// NewRateEventStore creates a RateWindowStore over the rate_events table.
// The account row lock serializes concurrent hits for one account.
func NewRateEventStore(db *sqlx.DB) port.RateWindowStore {
	return &rateEventStore{db: db}
}

func (s *rateEventStore) Hit(ctx context.Context, accountID uuid.UUID, limit int, window, retention time.Duration, now time.Time) (*domain.RateDecision, error) {
	now = now.UTC()
	windowStart := now.Add(-window)
	decision := &domain.RateDecision{Limit: limit}

	err := withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT 1 FROM accounts WHERE id = $1 FOR UPDATE", accountID); err != nil {
			return err
		}

		var count int
		if err := tx.GetContext(ctx, &count,
			"SELECT COUNT(*) FROM rate_events WHERE account_id = $1 AND occurred_at > $2",
			accountID, windowStart); err != nil {
			return err
		}

		if count >= limit {
			var oldest time.Time
			if err := tx.GetContext(ctx, &oldest,
				"SELECT MIN(occurred_at) FROM rate_events WHERE account_id = $1 AND occurred_at > $2",
				accountID, windowStart); err != nil {
				return err
			}
			decision.Count = count
			decision.RetryAfter = oldest.Add(window).Sub(now)
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rate_events (account_id, occurred_at) VALUES ($1, $2)", accountID, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM rate_events WHERE account_id = $1 AND occurred_at < $2",
			accountID, now.Add(-retention)); err != nil {
			return err
		}
		decision.Allowed = true
		decision.Count = count + 1
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rateEventStore.Hit: %w", err)
	}
	return decision, nil
}

func (s *rateEventStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
