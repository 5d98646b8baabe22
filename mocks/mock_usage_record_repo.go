package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
)

// MockUsageRecordRepo is a mock implementation of port.UsageRecordRepository.
type MockUsageRecordRepo struct {
	mock.Mock
}

func (m *MockUsageRecordRepo) Create(ctx context.Context, record *domain.UsageRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockUsageRecordRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, since time.Time, offset, limit int) ([]domain.UsageRecord, int, error) {
	args := m.Called(ctx, accountID, since, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.UsageRecord), args.Int(1), args.Error(2)
}
