package service

import (
	"context"
	"errors"
	"math"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"parserator/internal/config"
	"parserator/internal/domain"
	"parserator/internal/logger"
	"parserator/internal/port"
)

// LookupPrefixLength is how many leading characters of a secret are stored in clear for lookup.
const LookupPrefixLength = 16

var apiKeyPattern = regexp.MustCompile(`^pk_(live|test)_[A-Za-z0-9]{20,}$`)

// Admission is a request that passed the quota and rate checks and holds a
// monthly reservation until settled.
type Admission struct {
	Principal *domain.Principal
	Usage     *domain.MonthlyUsage
	Rate      *domain.RateDecision
}

// Outcome describes how a governed request finished.
type Outcome struct {
	StatusCode       int
	RequestID        string
	TokensUsed       int
	ProcessingTimeMs int64
	Confidence       float64
}

// GovernanceService authenticates API keys and enforces per-account quota and rate limits.
type GovernanceService interface {
	Authenticate(ctx context.Context, authorization string) (*domain.Principal, error)
	// Admit reserves one monthly request and records a rate window hit. On
	// rejection it returns a *domain.GovernanceError and, when known, the usage
	// snapshot so callers can still emit limit headers.
	Admit(ctx context.Context, principal *domain.Principal) (*Admission, error)
	// Settle drops the admission's reservation, counting it only on a 200, and
	// writes the usage record in the background.
	Settle(admission *Admission, outcome Outcome)
}

type governanceService struct {
	keyRepo     port.APIKeyRepository
	accountRepo port.AccountRepository
	usageRepo   port.UsageRepository
	rateStore   port.RateWindowStore
	recordRepo  port.UsageRecordRepository
	tasks       *TaskRunner
	events      EventPublisher
	email       port.EmailSender
	cfg         config.GovernanceConfig
	now         func() time.Time
}

// NewGovernanceService creates a new GovernanceService implementation. events
// and email may be nil.
func NewGovernanceService(
	keyRepo port.APIKeyRepository,
	accountRepo port.AccountRepository,
	usageRepo port.UsageRepository,
	rateStore port.RateWindowStore,
	recordRepo port.UsageRecordRepository,
	tasks *TaskRunner,
	events EventPublisher,
	email port.EmailSender,
	cfg config.GovernanceConfig,
) GovernanceService {
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.RateRetention < cfg.RateWindow {
		cfg.RateRetention = 5 * time.Minute
	}
	if cfg.Tiers == nil {
		cfg.Tiers = config.DefaultTiers()
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 5 * time.Second
	}
	return &governanceService{
		keyRepo:     keyRepo,
		accountRepo: accountRepo,
		usageRepo:   usageRepo,
		rateStore:   rateStore,
		recordRepo:  recordRepo,
		tasks:       tasks,
		events:      events,
		email:       email,
		cfg:         cfg,
		now:         time.Now,
	}
}

// ParseBearerKey extracts the API key from an Authorization header value.
func ParseBearerKey(authorization string) (string, *domain.GovernanceError) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return "", domain.NewGovernanceError(http.StatusUnauthorized, domain.CodeMissingAPIKey,
			"API key required. Use Authorization: Bearer pk_live_... or pk_test_...", nil)
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", domain.NewGovernanceError(http.StatusUnauthorized, domain.CodeInvalidAPIKeyFormat,
			"Authorization header must use the Bearer scheme", nil)
	}
	key := strings.TrimSpace(parts[1])
	if !apiKeyPattern.MatchString(key) {
		return "", domain.NewGovernanceError(http.StatusUnauthorized, domain.CodeInvalidAPIKeyFormat,
			"API key must match pk_live_... or pk_test_...", nil)
	}
	return key, nil
}

// LookupPrefix returns the stored lookup prefix of a secret.
func LookupPrefix(secret string) string {
	if len(secret) <= LookupPrefixLength {
		return secret
	}
	return secret[:LookupPrefixLength]
}

func internalGovernanceError(err error) *domain.GovernanceError {
	gErr := domain.NewGovernanceError(http.StatusInternalServerError, domain.CodeAuthenticationError,
		"authentication service error", nil)
	gErr.Err = err
	return gErr
}

func (s *governanceService) Authenticate(ctx context.Context, authorization string) (*domain.Principal, error) {
	secret, gErr := ParseBearerKey(authorization)
	if gErr != nil {
		return nil, gErr
	}

	candidates, err := s.keyRepo.ListActiveByPrefix(ctx, LookupPrefix(secret))
	if err != nil {
		logger.Error("service.GovernanceService.Authenticate: key lookup failed", "error", err)
		return nil, internalGovernanceError(err)
	}

	var matched *domain.APIKey
	for i := range candidates {
		k := &candidates[i]
		if !k.IsActive {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(secret)) == nil {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, domain.NewGovernanceError(http.StatusUnauthorized, domain.CodeInvalidAPIKey,
			"invalid API key", nil)
	}

	account, err := s.accountRepo.GetByID(ctx, matched.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewGovernanceError(http.StatusUnauthorized, domain.CodeUserNotFound,
				"account for this API key no longer exists", nil)
		}
		logger.Error("service.GovernanceService.Authenticate: account lookup failed",
			"account_id", matched.AccountID, "error", err)
		return nil, internalGovernanceError(err)
	}
	if !account.IsActive {
		return nil, domain.NewGovernanceError(http.StatusForbidden, domain.CodeAccountSuspended,
			"account is suspended", nil)
	}

	keyID := matched.ID
	at := s.now()
	s.tasks.Go("apikey.touch", func(ctx context.Context) {
		if err := s.keyRepo.TouchLastUsed(ctx, keyID, at); err != nil {
			logger.Warn("service.GovernanceService.Authenticate: last used update failed", "key_id", keyID, "error", err)
		}
	})

	return &domain.Principal{
		Account: account,
		APIKey:  matched,
		Limits:  s.cfg.LimitsFor(account.Tier),
	}, nil
}

func (s *governanceService) Admit(ctx context.Context, principal *domain.Principal) (*Admission, error) {
	accountID := principal.Account.ID
	limits := principal.Limits
	now := s.now()
	log := logger.With("account_id", accountID, "tier", string(principal.Account.Tier))

	usage, err := s.usageRepo.Reserve(ctx, accountID, limits.RequestsPerMonth, now)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) && usage != nil {
			log.Info("service.GovernanceService.Admit: monthly quota exhausted",
				"count", usage.Count, "limit", usage.Limit)
			return &Admission{Principal: principal, Usage: usage}, domain.NewGovernanceError(
				http.StatusTooManyRequests, domain.CodeUsageLimitExceeded,
				"monthly usage limit exceeded for your tier",
				map[string]interface{}{
					"monthlyUsage":     usage.Count,
					"monthlyLimit":     usage.Limit,
					"remainingMonthly": 0,
					"resetAt":          usage.ResetAt().UTC().Format(time.RFC3339),
					"tier":             string(principal.Account.Tier),
				})
		}
		log.Error("service.GovernanceService.Admit: quota reservation failed", "error", err)
		return nil, internalGovernanceError(err)
	}
	admission := &Admission{Principal: principal, Usage: usage}

	if limits.UnlimitedRate() {
		return admission, nil
	}

	decision, err := s.rateStore.Hit(ctx, accountID, limits.RequestsPerMinute, s.cfg.RateWindow, s.cfg.RateRetention, now)
	if err != nil {
		log.Error("service.GovernanceService.Admit: rate check failed", "error", err)
		s.release(ctx, accountID, usage.ReservationID)
		return nil, internalGovernanceError(err)
	}
	admission.Rate = decision
	if !decision.Allowed {
		s.release(ctx, accountID, usage.ReservationID)
		retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		log.Info("service.GovernanceService.Admit: rate limited", "count", decision.Count, "limit", decision.Limit, "retry_after", retryAfter)
		return admission, domain.NewGovernanceError(http.StatusTooManyRequests, domain.CodeRateLimitExceeded,
			"rate limit exceeded, slow down",
			map[string]interface{}{
				"retryAfterSeconds":  retryAfter,
				"rateLimitPerMinute": decision.Limit,
				"windowSeconds":      int(s.cfg.RateWindow.Seconds()),
			})
	}
	return admission, nil
}

func (s *governanceService) release(ctx context.Context, accountID, reservationID uuid.UUID) {
	if err := s.usageRepo.Release(context.WithoutCancel(ctx), reservationID); err != nil {
		logger.Error("service.GovernanceService.Admit: reservation release failed, it will expire",
			"account_id", accountID, "reservation_id", reservationID, "error", err)
	}
}

func (s *governanceService) Settle(admission *Admission, outcome Outcome) {
	if admission == nil || admission.Principal == nil {
		return
	}
	account := admission.Principal.Account
	var keyID *uuid.UUID
	if admission.Principal.APIKey != nil {
		id := admission.Principal.APIKey.ID
		keyID = &id
	}
	counted := outcome.StatusCode == http.StatusOK
	at := s.now()
	var reservationID uuid.UUID
	if admission.Usage != nil {
		reservationID = admission.Usage.ReservationID
	}
	log := logger.With("account_id", account.ID, "request_id", outcome.RequestID)

	// The counter settles on the caller's goroutine so a busy task runner can
	// never hold a reservation open.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SettleTimeout)
	err := s.usageRepo.Settle(ctx, account.ID, reservationID, counted)
	cancel()
	if err != nil {
		log.Error("service.GovernanceService.Settle: usage settle failed, reservation will expire",
			"reservation_id", reservationID, "error", err)
		return
	}
	if !counted {
		return
	}

	s.tasks.Go("usage.record", func(ctx context.Context) {
		record := &domain.UsageRecord{
			ID:               uuid.New(),
			AccountID:        account.ID,
			APIKeyID:         keyID,
			RequestID:        outcome.RequestID,
			StatusCode:       outcome.StatusCode,
			TokensUsed:       outcome.TokensUsed,
			ProcessingTimeMs: outcome.ProcessingTimeMs,
			Confidence:       outcome.Confidence,
			CreatedAt:        at,
		}
		if err := s.recordRepo.Create(ctx, record); err != nil {
			log.Warn("service.GovernanceService.Settle: usage record write failed", "error", err)
		}
		s.notifyThresholds(ctx, account, admission.Usage)
	})
}

// notifyThresholds emails at 80% of the monthly quota and emits an event when it is reached.
func (s *governanceService) notifyThresholds(ctx context.Context, account *domain.Account, usage *domain.MonthlyUsage) {
	if usage == nil || usage.Limit <= 0 {
		return
	}
	used := usage.Count + 1
	warnAt := usage.Limit * 8 / 10
	if used == warnAt && s.email != nil {
		if err := s.email.SendQuotaWarningEmail(ctx, account.Email, used, usage.Limit); err != nil {
			logger.Warn("service.GovernanceService.Settle: quota warning email failed", "account_id", account.ID, "error", err)
		}
	}
	if used == usage.Limit && s.events != nil {
		s.events.Publish(account.ID, domain.EventUsageLimitReached, "", map[string]interface{}{
			"monthlyUsage": used,
			"monthlyLimit": usage.Limit,
			"resetAt":      usage.ResetAt().UTC().Format(time.RFC3339),
		})
	}
}
