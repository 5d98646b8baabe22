package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"parserator/internal/config"
	"parserator/internal/domain"
	"parserator/internal/logger"
	"parserator/internal/port"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Parserator-Signature-256"

// CreateWebhookInput is the DTO for subscribing a webhook.
type CreateWebhookInput struct {
	TargetURL string   `json:"targetUrl" binding:"required,url"`
	Events    []string `json:"events" binding:"required,min=1"`
}

// CreatedWebhook carries the signing secret, which is only ever returned here.
type CreatedWebhook struct {
	Webhook *domain.Webhook `json:"webhook"`
	Secret  string          `json:"secret"`
}

// WebhookEventPayload is the JSON body delivered to subscribers.
type WebhookEventPayload struct {
	EventID   string                 `json:"eventId"`
	Timestamp time.Time              `json:"timestamp"`
	EventName domain.WebhookEvent    `json:"eventName"`
	JobID     string                 `json:"jobId,omitempty"`
	Data      map[string]interface{} `json:"data"`
}

// WebhookService manages webhook subscriptions and signed event delivery.
type WebhookService interface {
	EventPublisher
	Create(ctx context.Context, accountID uuid.UUID, input CreateWebhookInput) (*CreatedWebhook, error)
	List(ctx context.Context, accountID uuid.UUID) ([]domain.Webhook, error)
	Delete(ctx context.Context, accountID, webhookID uuid.UUID) error
	// Dispatch delivers event to every active subscriber and waits for delivery.
	Dispatch(ctx context.Context, accountID uuid.UUID, event domain.WebhookEvent, jobID string, data map[string]interface{}) error
}

type webhookService struct {
	repo   port.WebhookRepository
	tasks  *TaskRunner
	client *http.Client
	cfg    config.WebhookConfig
}

// NewWebhookService creates a new WebhookService implementation. A nil client
// uses one with the configured delivery timeout.
func NewWebhookService(repo port.WebhookRepository, tasks *TaskRunner, client *http.Client, cfg config.WebhookConfig) WebhookService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &webhookService{repo: repo, tasks: tasks, client: client, cfg: cfg}
}

// GenerateWebhookSecret returns whsec_ followed by 48 hex characters.
func GenerateWebhookSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating webhook secret: %w", err)
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *webhookService) Create(ctx context.Context, accountID uuid.UUID, input CreateWebhookInput) (*CreatedWebhook, error) {
	u, err := url.Parse(strings.TrimSpace(input.TargetURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.ErrInvalidWebhookURL
	}
	if len(input.Events) == 0 {
		return nil, domain.ErrNoWebhookEvents
	}
	seen := make(map[string]bool, len(input.Events))
	events := make([]string, 0, len(input.Events))
	for _, e := range input.Events {
		if !domain.WebhookEvent(e).Valid() {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEvent, e)
		}
		if !seen[e] {
			seen[e] = true
			events = append(events, e)
		}
	}

	secret, err := GenerateWebhookSecret()
	if err != nil {
		return nil, fmt.Errorf("webhook.Create: %w", err)
	}
	hook := &domain.Webhook{
		ID:        uuid.New(),
		AccountID: accountID,
		TargetURL: u.String(),
		Events:    events,
		Secret:    secret,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, hook); err != nil {
		return nil, fmt.Errorf("webhook.Create: %w", err)
	}
	logger.Info("service.WebhookService.Create: webhook registered",
		"account_id", accountID, "webhook_id", hook.ID, "events", strings.Join(events, ","))
	return &CreatedWebhook{Webhook: hook, Secret: secret}, nil
}

func (s *webhookService) List(ctx context.Context, accountID uuid.UUID) ([]domain.Webhook, error) {
	hooks, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("webhook.List: %w", err)
	}
	for i := range hooks {
		hooks[i].Secret = ""
	}
	return hooks, nil
}

func (s *webhookService) Delete(ctx context.Context, accountID, webhookID uuid.UUID) error {
	hook, err := s.repo.GetByID(ctx, webhookID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrWebhookNotFound
		}
		return fmt.Errorf("webhook.Delete: %w", err)
	}
	if hook.AccountID != accountID {
		return domain.ErrForbidden
	}
	if err := s.repo.Delete(ctx, webhookID); err != nil {
		return fmt.Errorf("webhook.Delete: %w", err)
	}
	return nil
}

// Publish schedules Dispatch in the background. The task deadline covers every
// retry of every subscriber.
func (s *webhookService) Publish(accountID uuid.UUID, event domain.WebhookEvent, jobID string, data map[string]interface{}) {
	attempts := time.Duration(s.cfg.MaxRetries + 1)
	budget := attempts*(s.cfg.Timeout+s.cfg.RetryDelay) + s.cfg.Timeout
	s.tasks.GoWithTimeout("webhook."+string(event), budget, func(ctx context.Context) {
		if err := s.Dispatch(ctx, accountID, event, jobID, data); err != nil {
			logger.Warn("service.WebhookService.Publish: dispatch failed",
				"account_id", accountID, "event", string(event), "error", err)
		}
	})
}

func (s *webhookService) Dispatch(ctx context.Context, accountID uuid.UUID, event domain.WebhookEvent, jobID string, data map[string]interface{}) error {
	hooks, err := s.repo.ListActiveForEvent(ctx, accountID, event)
	if err != nil {
		return fmt.Errorf("webhook.Dispatch: %w", err)
	}
	if len(hooks) == 0 {
		return nil
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	body, err := json.Marshal(WebhookEventPayload{
		EventID:   "evt_" + uuid.New().String(),
		Timestamp: time.Now().UTC(),
		EventName: event,
		JobID:     jobID,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("webhook.Dispatch: encoding payload: %w", err)
	}

	var failed []string
	for i := range hooks {
		hook := &hooks[i]
		if err := s.deliver(ctx, hook, body); err != nil {
			failed = append(failed, hook.ID.String())
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("webhook.Dispatch: delivery failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

// deliver posts body to one subscriber, retrying with a fixed delay.
func (s *webhookService) deliver(ctx context.Context, hook *domain.Webhook, body []byte) error {
	signature := Sign(hook.Secret, body)
	log := logger.With("webhook_id", hook.ID, "target", hook.TargetURL)

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(s.cfg.RetryDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry interrupted: %w", ctx.Err())
			}
		}

		lastErr = s.post(ctx, hook.TargetURL, body, signature)
		if lastErr == nil {
			if err := s.repo.RecordSuccess(ctx, hook.ID, time.Now().UTC()); err != nil {
				log.Warn("service.WebhookService.deliver: recording success failed", "error", err)
			}
			log.Info("service.WebhookService.deliver: delivered", "attempt", attempt+1)
			return nil
		}

		log.Warn("service.WebhookService.deliver: attempt failed", "attempt", attempt+1, "error", lastErr)
		if err := s.repo.RecordFailure(ctx, hook.ID, time.Now().UTC()); err != nil {
			log.Warn("service.WebhookService.deliver: recording failure failed", "error", err)
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", s.cfg.MaxRetries+1, lastErr)
}

func (s *webhookService) post(ctx context.Context, target string, body []byte, signature string) error {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
