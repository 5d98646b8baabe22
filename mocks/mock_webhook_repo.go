package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
)

// MockWebhookRepo is a mock implementation of port.WebhookRepository.
type MockWebhookRepo struct {
	mock.Mock
}

func (m *MockWebhookRepo) Create(ctx context.Context, webhook *domain.Webhook) error {
	args := m.Called(ctx, webhook)
	return args.Error(0)
}

func (m *MockWebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Webhook, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Webhook), args.Error(1)
}

func (m *MockWebhookRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Webhook, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Webhook), args.Error(1)
}

func (m *MockWebhookRepo) ListActiveForEvent(ctx context.Context, accountID uuid.UUID, event domain.WebhookEvent) ([]domain.Webhook, error) {
	args := m.Called(ctx, accountID, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Webhook), args.Error(1)
}

func (m *MockWebhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockWebhookRepo) RecordSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockWebhookRepo) RecordFailure(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}
