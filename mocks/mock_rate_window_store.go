package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
)

// MockRateWindowStore is a mock implementation of port.RateWindowStore.
type MockRateWindowStore struct {
	mock.Mock
}

func (m *MockRateWindowStore) Hit(ctx context.Context, accountID uuid.UUID, limit int, window, retention time.Duration, now time.Time) (*domain.RateDecision, error) {
	args := m.Called(ctx, accountID, limit, window, retention, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateDecision), args.Error(1)
}

func (m *MockRateWindowStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
