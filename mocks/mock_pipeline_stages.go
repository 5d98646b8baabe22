package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"parserator/internal/service"
)

// MockArchitectService is a mock implementation of service.ArchitectService.
type MockArchitectService struct {
	mock.Mock
}

func (m *MockArchitectService) GenerateSearchPlan(ctx context.Context, input service.ArchitectInput) (*service.ArchitectResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ArchitectResult), args.Error(1)
}

// MockExtractorService is a mock implementation of service.ExtractorService.
type MockExtractorService struct {
	mock.Mock
}

func (m *MockExtractorService) ExecuteSearchPlan(ctx context.Context, input service.ExtractorInput) (*service.ExtractorResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ExtractorResult), args.Error(1)
}
