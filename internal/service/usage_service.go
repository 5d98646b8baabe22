package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"parserator/internal/domain"
	"parserator/internal/export"
	"parserator/internal/port"
)

const (
	recentRecordLimit = 20
	exportBatchSize   = 500
	exportMaxRecords  = 50000
)

// UsageSummary is the account's current standing against its tier.
type UsageSummary struct {
	Tier               domain.Tier          `json:"tier"`
	MonthlyUsage       int                  `json:"monthlyUsage"`
	MonthlyLimit       int                  `json:"monthlyLimit"`
	Remaining          int                  `json:"remaining"`
	RateLimitPerMinute int                  `json:"rateLimitPerMinute"`
	MaxInputBytes      int                  `json:"maxInputBytes"`
	ResetAt            time.Time            `json:"resetAt"`
	Recent             []domain.UsageRecord `json:"recent"`
	RecentTotal        int                  `json:"recentTotal"`
}

// UsageService reports and exports usage history.
type UsageService interface {
	Summary(ctx context.Context, principal *domain.Principal) (*UsageSummary, error)
	Export(ctx context.Context, accountID uuid.UUID, format export.Format, since time.Time, w io.Writer) error
}

type usageService struct {
	usageRepo  port.UsageRepository
	recordRepo port.UsageRecordRepository
	now        func() time.Time
}

// NewUsageService creates a new UsageService implementation.
func NewUsageService(usageRepo port.UsageRepository, recordRepo port.UsageRecordRepository) UsageService {
	return &usageService{usageRepo: usageRepo, recordRepo: recordRepo, now: time.Now}
}

func (s *usageService) Summary(ctx context.Context, principal *domain.Principal) (*UsageSummary, error) {
	account := principal.Account
	limits := principal.Limits
	now := s.now()

	usage, err := s.usageRepo.Get(ctx, account.ID, limits.RequestsPerMonth, now)
	if err != nil {
		return nil, fmt.Errorf("usage.Summary: %w", err)
	}
	records, total, err := s.recordRepo.ListByAccount(ctx, account.ID, monthStart(now), 0, recentRecordLimit)
	if err != nil {
		return nil, fmt.Errorf("usage.Summary: %w", err)
	}
	if records == nil {
		records = []domain.UsageRecord{}
	}

	return &UsageSummary{
		Tier:               account.Tier,
		MonthlyUsage:       usage.Count,
		MonthlyLimit:       usage.Limit,
		Remaining:          usage.Remaining(),
		RateLimitPerMinute: limits.RequestsPerMinute,
		MaxInputBytes:      limits.MaxInputBytes,
		ResetAt:            usage.ResetAt().UTC(),
		Recent:             records,
		RecentTotal:        total,
	}, nil
}

func (s *usageService) Export(ctx context.Context, accountID uuid.UUID, format export.Format, since time.Time, w io.Writer) error {
	var all []domain.UsageRecord
	for offset := 0; offset < exportMaxRecords; offset += exportBatchSize {
		batch, total, err := s.recordRepo.ListByAccount(ctx, accountID, since, offset, exportBatchSize)
		if err != nil {
			return fmt.Errorf("usage.Export: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < exportBatchSize || offset+len(batch) >= total {
			break
		}
	}

	switch format {
	case export.FormatXLSX:
		return export.WriteXLSX(w, all)
	case export.FormatCSV:
		if _, err := w.Write(export.BOM); err != nil {
			return fmt.Errorf("usage.Export: %w", err)
		}
		cw := export.NewCSVWriter(w)
		if err := cw.WriteHeader(); err != nil {
			return fmt.Errorf("usage.Export: %w", err)
		}
		if err := cw.WriteRecords(all); err != nil {
			return fmt.Errorf("usage.Export: %w", err)
		}
		cw.Flush()
		return cw.Error()
	default:
		return domain.ErrUnsupportedFormat
	}
}

// monthStart returns midnight UTC on the first day of t's month.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
