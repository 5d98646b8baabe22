package mocks

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"parserator/internal/domain"
	"parserator/internal/export"
	"parserator/internal/service"
)

// MockUsageService is a mock implementation of service.UsageService.
type MockUsageService struct {
	mock.Mock
}

func (m *MockUsageService) Summary(ctx context.Context, principal *domain.Principal) (*service.UsageSummary, error) {
	args := m.Called(ctx, principal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UsageSummary), args.Error(1)
}

func (m *MockUsageService) Export(ctx context.Context, accountID uuid.UUID, format export.Format, since time.Time, w io.Writer) error {
	args := m.Called(ctx, accountID, format, since, w)
	return args.Error(0)
}
