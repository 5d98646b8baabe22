package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"parserator/internal/llm"
)

// MockModelGateway is a mock implementation of service.ModelGateway.
type MockModelGateway struct {
	mock.Mock
}

func (m *MockModelGateway) Generate(ctx context.Context, prompt string, opts llm.Options) (*llm.Response, error) {
	args := m.Called(ctx, prompt, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

func (m *MockModelGateway) TestConnection(ctx context.Context) (*llm.Response, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Response), args.Error(1)
}

func (m *MockModelGateway) Ready() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockModelGateway) Model() string {
	args := m.Called()
	return args.String(0)
}
