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

type apiKeyRepo struct {
	db *sqlx.DB
}

// NewAPIKeyRepo creates a new PostgreSQL-backed APIKeyRepository.
func NewAPIKeyRepo(db *sqlx.DB) port.APIKeyRepository {
	return &apiKeyRepo{db: db}
}

func (r *apiKeyRepo) Create(ctx context.Context, key *domain.APIKey) error {
	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}
	key.CreatedAt = time.Now().UTC()

	query := `INSERT INTO api_keys (id, account_id, key_hash, lookup_prefix, environment,
		name, tier_when_created, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		key.ID, key.AccountID, key.KeyHash, key.LookupPrefix, key.Environment,
		key.Name, key.TierWhenCreated, key.IsActive, key.CreatedAt)
	if err != nil {
		return fmt.Errorf("apiKeyRepo.Create: %w", err)
	}
	return nil
}

func (r *apiKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	var key domain.APIKey
	err := r.db.GetContext(ctx, &key, "SELECT * FROM api_keys WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("apiKeyRepo.GetByID: %w", err)
	}
	return &key, nil
}

func (r *apiKeyRepo) ListActiveByPrefix(ctx context.Context, prefix string) ([]domain.APIKey, error) {
	var keys []domain.APIKey
	err := r.db.SelectContext(ctx, &keys,
		"SELECT * FROM api_keys WHERE lookup_prefix = $1 AND is_active = true", prefix)
	if err != nil {
		return nil, fmt.Errorf("apiKeyRepo.ListActiveByPrefix: %w", err)
	}
	return keys, nil
}

func (r *apiKeyRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.APIKey, error) {
	var keys []domain.APIKey
	err := r.db.SelectContext(ctx, &keys,
		"SELECT * FROM api_keys WHERE account_id = $1 ORDER BY created_at DESC", accountID)
	if err != nil {
		return nil, fmt.Errorf("apiKeyRepo.ListByAccount: %w", err)
	}
	return keys, nil
}

func (r *apiKeyRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE api_keys SET is_active = false WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("apiKeyRepo.Deactivate: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *apiKeyRepo) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used_at = $1 WHERE id = $2", at.UTC(), id)
	if err != nil {
		return fmt.Errorf("apiKeyRepo.TouchLastUsed: %w", err)
	}
	return nil
}
