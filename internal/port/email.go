package port

import "context"

// EmailSender defines the contract for account notification emails.
type EmailSender interface {
	SendKeyCreatedEmail(ctx context.Context, toEmail, keyName, keyPrefix string) error
	SendQuotaWarningEmail(ctx context.Context, toEmail string, used, limit int) error
}
