package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the billing identity that owns API keys and usage.
type Account struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Email             string    `db:"email" json:"email"`
	PasswordHash      string    `db:"password_hash" json:"-"`
	Tier              Tier      `db:"tier" json:"tier"`
	MonthlyUsageCount int       `db:"monthly_usage_count" json:"monthlyUsageCount"`
	LastResetAt       time.Time `db:"last_reset_at" json:"lastResetAt"`
	IsActive          bool      `db:"is_active" json:"isActive"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time `db:"updated_at" json:"updatedAt"`
}

// APIKey is a stored credential. The plaintext secret is never persisted.
type APIKey struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	AccountID       uuid.UUID   `db:"account_id" json:"accountId"`
	KeyHash         string      `db:"key_hash" json:"-"`
	LookupPrefix    string      `db:"lookup_prefix" json:"keyPrefix"`
	Environment     Environment `db:"environment" json:"environment"`
	Name            string      `db:"name" json:"name"`
	TierWhenCreated Tier        `db:"tier_when_created" json:"tierWhenCreated"`
	IsActive        bool        `db:"is_active" json:"isActive"`
	LastUsedAt      *time.Time  `db:"last_used_at" json:"lastUsedAt,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
}

// Webhook is a subscription that receives signed event notifications.
type Webhook struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AccountID     uuid.UUID  `db:"account_id" json:"accountId"`
	TargetURL     string     `db:"target_url" json:"targetUrl"`
	Events        []string   `db:"-" json:"events"`
	EventList     string     `db:"events" json:"-"`
	Secret        string     `db:"secret" json:"-"`
	IsActive      bool       `db:"is_active" json:"isActive"`
	LastSuccessAt *time.Time `db:"last_success_at" json:"lastSuccessAt,omitempty"`
	LastFailureAt *time.Time `db:"last_failure_at" json:"lastFailureAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// Subscribes reports whether the webhook listens for event.
func (w *Webhook) Subscribes(event WebhookEvent) bool {
	for _, e := range w.Events {
		if e == string(event) {
			return true
		}
	}
	return false
}

// UsageRecord is one settled request against an account.
type UsageRecord struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	AccountID        uuid.UUID  `db:"account_id" json:"accountId"`
	APIKeyID         *uuid.UUID `db:"api_key_id" json:"apiKeyId,omitempty"`
	RequestID        string     `db:"request_id" json:"requestId"`
	StatusCode       int        `db:"status_code" json:"statusCode"`
	TokensUsed       int        `db:"tokens_used" json:"tokensUsed"`
	ProcessingTimeMs int64      `db:"processing_time_ms" json:"processingTimeMs"`
	Confidence       float64    `db:"confidence" json:"confidence"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}

// TierLimits holds the quotas attached to a tier. A value <= 0 means unlimited.
type TierLimits struct {
	RequestsPerMonth  int `yaml:"requests_per_month" json:"requestsPerMonth"`
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requestsPerMinute"`
	MaxInputBytes     int `yaml:"max_input_bytes" json:"maxInputBytes"`
}

// UnlimitedMonthly reports whether the monthly quota is disabled.
func (l TierLimits) UnlimitedMonthly() bool { return l.RequestsPerMonth <= 0 }

// UnlimitedRate reports whether the per-minute limit is disabled.
func (l TierLimits) UnlimitedRate() bool { return l.RequestsPerMinute <= 0 }

// MonthlyUsage is the outcome of a quota reservation.
type MonthlyUsage struct {
	Count       int
	InFlight    int
	Limit       int
	LastResetAt time.Time
	// ReservationID identifies the reservation taken by a successful Reserve.
	ReservationID uuid.UUID
}

// Remaining returns how many requests the account may still make this month.
// Unlimited quotas report -1.
func (u MonthlyUsage) Remaining() int {
	if u.Limit <= 0 {
		return -1
	}
	rem := u.Limit - u.Count - u.InFlight
	if rem < 0 {
		return 0
	}
	return rem
}

// ResetAt returns the scheduled reset, one month after the last reset.
func (u MonthlyUsage) ResetAt() time.Time {
	return u.LastResetAt.AddDate(0, 1, 0)
}

// RateDecision is the outcome of a per-minute rate check.
type RateDecision struct {
	Allowed    bool
	Count      int
	Limit      int
	RetryAfter time.Duration
}

// Principal is the authenticated caller attached to a governed request.
type Principal struct {
	Account *Account
	APIKey  *APIKey
	Limits  TierLimits
}
