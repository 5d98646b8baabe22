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

type usageRecordRepo struct {
	db *sqlx.DB
}

// NewUsageRecordRepo creates a new PostgreSQL-backed UsageRecordRepository.
func NewUsageRecordRepo(db *sqlx.DB) port.UsageRecordRepository {
	return &usageRecordRepo{db: db}
}

func (r *usageRecordRepo) Create(ctx context.Context, record *domain.UsageRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO usage_records (id, account_id, api_key_id, request_id, status_code,
		tokens_used, processing_time_ms, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.AccountID, record.APIKeyID, record.RequestID, record.StatusCode,
		record.TokensUsed, record.ProcessingTimeMs, record.Confidence, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("usageRecordRepo.Create: %w", err)
	}
	return nil
}

func (r *usageRecordRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, since time.Time, offset, limit int) ([]domain.UsageRecord, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM usage_records WHERE account_id = $1 AND created_at >= $2", accountID, since)
	if err != nil {
		return nil, 0, fmt.Errorf("usageRecordRepo.ListByAccount count: %w", err)
	}

	var records []domain.UsageRecord
	err = r.db.SelectContext(ctx, &records,
		`SELECT * FROM usage_records WHERE account_id = $1 AND created_at >= $2
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		accountID, since, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("usageRecordRepo.ListByAccount: %w", err)
	}
	return records, total, nil
}
