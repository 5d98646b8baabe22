package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
	"parserator/internal/service"
)

// MockGovernanceService is a mock implementation of service.GovernanceService.
type MockGovernanceService struct {
	mock.Mock
}

func (m *MockGovernanceService) Authenticate(ctx context.Context, authorization string) (*domain.Principal, error) {
	args := m.Called(ctx, authorization)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Principal), args.Error(1)
}

func (m *MockGovernanceService) Admit(ctx context.Context, principal *domain.Principal) (*service.Admission, error) {
	args := m.Called(ctx, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Admission), args.Error(1)
}

func (m *MockGovernanceService) Settle(admission *service.Admission, outcome service.Outcome) {
	m.Called(admission, outcome)
}
