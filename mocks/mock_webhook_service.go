package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
	"parserator/internal/service"
)

// MockWebhookService is a mock implementation of service.WebhookService.
type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) Publish(accountID uuid.UUID, event domain.WebhookEvent, jobID string, data map[string]interface{}) {
	m.Called(accountID, event, jobID, data)
}

func (m *MockWebhookService) Create(ctx context.Context, accountID uuid.UUID, input service.CreateWebhookInput) (*service.CreatedWebhook, error) {
	args := m.Called(ctx, accountID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreatedWebhook), args.Error(1)
}

func (m *MockWebhookService) List(ctx context.Context, accountID uuid.UUID) ([]domain.Webhook, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Webhook), args.Error(1)
}

func (m *MockWebhookService) Delete(ctx context.Context, accountID, webhookID uuid.UUID) error {
	args := m.Called(ctx, accountID, webhookID)
	return args.Error(0)
}

func (m *MockWebhookService) Dispatch(ctx context.Context, accountID uuid.UUID, event domain.WebhookEvent, jobID string, data map[string]interface{}) error {
	args := m.Called(ctx, accountID, event, jobID, data)
	return args.Error(0)
}
