package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
	"parserator/internal/service"
)

// MockEventPublisher is a mock implementation of service.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(accountID uuid.UUID, event domain.WebhookEvent, jobID string, data map[string]interface{}) {
	m.Called(accountID, event, jobID, data)
}

// MockResultArchiver is a mock implementation of service.ResultArchiver.
type MockResultArchiver struct {
	mock.Mock
}

func (m *MockResultArchiver) Archive(accountID uuid.UUID, result *domain.ParseResult) {
	m.Called(accountID, result)
}

// MockResultLinker is a mock implementation of service.ResultLinker.
type MockResultLinker struct {
	mock.Mock
}

func (m *MockResultLinker) Link(ctx context.Context, accountID uuid.UUID, requestID string) (*service.ResultLink, error) {
	args := m.Called(ctx, accountID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ResultLink), args.Error(1)
}
