package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
)

// MockUsageRepo is a mock implementation of port.UsageRepository.
type MockUsageRepo struct {
	mock.Mock
}

func (m *MockUsageRepo) Reserve(ctx context.Context, accountID uuid.UUID, limit int, now time.Time) (*domain.MonthlyUsage, error) {
	args := m.Called(ctx, accountID, limit, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MonthlyUsage), args.Error(1)
}

func (m *MockUsageRepo) Release(ctx context.Context, reservationID uuid.UUID) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func (m *MockUsageRepo) Settle(ctx context.Context, accountID, reservationID uuid.UUID, counted bool) error {
	args := m.Called(ctx, accountID, reservationID, counted)
	return args.Error(0)
}

func (m *MockUsageRepo) Get(ctx context.Context, accountID uuid.UUID, limit int, now time.Time) (*domain.MonthlyUsage, error) {
	args := m.Called(ctx, accountID, limit, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MonthlyUsage), args.Error(1)
}

func (m *MockUsageRepo) ResetMonthly(ctx context.Context, monthStart time.Time) (int64, error) {
	args := m.Called(ctx, monthStart)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageRepo) PurgeExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
