package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"parserator/internal/domain"
)

// AccountRepository defines the contract for account persistence.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdateTier(ctx context.Context, id uuid.UUID, tier domain.Tier) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// APIKeyRepository defines the contract for credential persistence.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error)
	// ListActiveByPrefix returns active keys whose lookup prefix matches.
	ListActiveByPrefix(ctx context.Context, prefix string) ([]domain.APIKey, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.APIKey, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// UsageRepository owns the monthly counter and the in-flight reservations
// counted against it. Reservations expire, so an unsettled one stops counting
// once its TTL passes.
type UsageRepository interface {
	// Reserve rolls the counter over when the last reset is in a prior calendar
	// month, then takes one reservation. It returns domain.ErrQuotaExceeded
	// alongside the current usage when count+in-flight has reached limit.
	Reserve(ctx context.Context, accountID uuid.UUID, limit int, now time.Time) (*domain.MonthlyUsage, error)
	// Release drops a reservation without counting it.
	Release(ctx context.Context, reservationID uuid.UUID) error
	// Settle drops a reservation and, when counted is true, increments the counter.
	Settle(ctx context.Context, accountID, reservationID uuid.UUID, counted bool) error
	// Get returns usage as the next Reserve would see it, without mutating.
	Get(ctx context.Context, accountID uuid.UUID, limit int, now time.Time) (*domain.MonthlyUsage, error)
	// ResetMonthly zeroes counters whose last reset is before monthStart.
	ResetMonthly(ctx context.Context, monthStart time.Time) (int64, error)
	// PurgeExpiredReservations deletes reservations whose TTL has passed.
	PurgeExpiredReservations(ctx context.Context, now time.Time) (int64, error)
}

// RateWindowStore enforces a sliding per-account request window.
type RateWindowStore interface {
	// Hit counts entries in the trailing window and, when below limit, appends
	// now and prunes entries older than retention, all in one atomic unit.
	Hit(ctx context.Context, accountID uuid.UUID, limit int, window, retention time.Duration, now time.Time) (*domain.RateDecision, error)
	Ping(ctx context.Context) error
}

// UsageRecordRepository defines the contract for settled request history.
type UsageRecordRepository interface {
	Create(ctx context.Context, record *domain.UsageRecord) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, since time.Time, offset, limit int) ([]domain.UsageRecord, int, error)
}

// WebhookRepository defines the contract for webhook subscription persistence.
type WebhookRepository interface {
	Create(ctx context.Context, webhook *domain.Webhook) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Webhook, error)
	ListActiveForEvent(ctx context.Context, accountID uuid.UUID, event domain.WebhookEvent) ([]domain.Webhook, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RecordSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, at time.Time) error
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
