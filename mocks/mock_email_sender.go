package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendKeyCreatedEmail(ctx context.Context, toEmail, keyName, keyPrefix string) error {
	args := m.Called(ctx, toEmail, keyName, keyPrefix)
	return args.Error(0)
}

func (m *MockEmailSender) SendQuotaWarningEmail(ctx context.Context, toEmail string, used, limit int) error {
	args := m.Called(ctx, toEmail, used, limit)
	return args.Error(0)
}
