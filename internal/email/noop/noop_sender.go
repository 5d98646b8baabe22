package noop

import (
	"context"

	"parserator/internal/logger"
	"parserator/internal/port"
)

type noopSender struct{}

// NewNoopSender creates an EmailSender that only logs what it would send.
func NewNoopSender() port.EmailSender {
	return &noopSender{}
}

func (s *noopSender) SendKeyCreatedEmail(_ context.Context, toEmail, keyName, keyPrefix string) error {
	logger.Info("email.noop: key created", "to", toEmail, "key_name", keyName, "key_prefix", keyPrefix)
	return nil
}

func (s *noopSender) SendQuotaWarningEmail(_ context.Context, toEmail string, used, limit int) error {
	logger.Info("email.noop: quota warning", "to", toEmail, "used", used, "limit", limit)
	return nil
}
