package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"parserator/internal/domain"
	"parserator/internal/port"
)

type webhookRepo struct {
	db *sqlx.DB
}

// NewWebhookRepo creates a new PostgreSQL-backed WebhookRepository.
func NewWebhookRepo(db *sqlx.DB) port.WebhookRepository {
	return &webhookRepo{db: db}
}

// joinEvents and splitEvents convert between Events and the comma-separated events column.
func joinEvents(events []string) string {
	return strings.Join(events, ",")
}

func splitEvents(list string) []string {
	if list == "" {
		return []string{}
	}
	return strings.Split(list, ",")
}

func hydrate(hooks []domain.Webhook) []domain.Webhook {
	for i := range hooks {
		hooks[i].Events = splitEvents(hooks[i].EventList)
	}
	return hooks
}

func (r *webhookRepo) Create(ctx context.Context, webhook *domain.Webhook) error {
	if webhook.ID == uuid.Nil {
		webhook.ID = uuid.New()
	}
	webhook.CreatedAt = time.Now().UTC()
	webhook.EventList = joinEvents(webhook.Events)

	query := `INSERT INTO webhooks (id, account_id, target_url, events, secret, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		webhook.ID, webhook.AccountID, webhook.TargetURL, webhook.EventList,
		webhook.Secret, webhook.IsActive, webhook.CreatedAt)
	if err != nil {
		return fmt.Errorf("webhookRepo.Create: %w", err)
	}
	return nil
}

func (r *webhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	var hook domain.Webhook
	err := r.db.GetContext(ctx, &hook, "SELECT * FROM webhooks WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("webhookRepo.GetByID: %w", err)
	}
	hook.Events = splitEvents(hook.EventList)
	return &hook, nil
}

func (r *webhookRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Webhook, error) {
	var hooks []domain.Webhook
	err := r.db.SelectContext(ctx, &hooks,
		"SELECT * FROM webhooks WHERE account_id = $1 ORDER BY created_at DESC", accountID)
	if err != nil {
		return nil, fmt.Errorf("webhookRepo.ListByAccount: %w", err)
	}
	return hydrate(hooks), nil
}

func (r *webhookRepo) ListActiveForEvent(ctx context.Context, accountID uuid.UUID, event domain.WebhookEvent) ([]domain.Webhook, error) {
	var hooks []domain.Webhook
	err := r.db.SelectContext(ctx, &hooks,
		`SELECT * FROM webhooks
		 WHERE account_id = $1 AND is_active = true AND $2 = ANY(string_to_array(events, ','))`,
		accountID, string(event))
	if err != nil {
		return nil, fmt.Errorf("webhookRepo.ListActiveForEvent: %w", err)
	}
	return hydrate(hooks), nil
}

func (r *webhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("webhookRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *webhookRepo) RecordSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE webhooks SET last_success_at = $1 WHERE id = $2", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("webhookRepo.RecordSuccess: %w", err)
	}
	return nil
}

func (r *webhookRepo) RecordFailure(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, "UPDATE webhooks SET last_failure_at = $1 WHERE id = $2", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("webhookRepo.RecordFailure: %w", err)
	}
	return nil
}
