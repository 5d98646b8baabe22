package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
	"parserator/internal/service"
)

// MockAPIKeyService is a mock implementation of service.APIKeyService.
type MockAPIKeyService struct {
	mock.Mock
}

func (m *MockAPIKeyService) Create(ctx context.Context, accountID uuid.UUID, input service.CreateKeyInput) (*service.CreatedKey, error) {
	args := m.Called(ctx, accountID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreatedKey), args.Error(1)
}

func (m *MockAPIKeyService) List(ctx context.Context, accountID uuid.UUID) ([]domain.APIKey, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.APIKey), args.Error(1)
}

func (m *MockAPIKeyService) Deactivate(ctx context.Context, accountID, keyID uuid.UUID) error {
	args := m.Called(ctx, accountID, keyID)
	return args.Error(0)
}
