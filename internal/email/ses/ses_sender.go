package ses

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"parserator/internal/config"
	"parserator/internal/port"
)

type sesSender struct {
	client       *sesv2.Client
	from         string
	dashboardURL string
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(ctx context.Context, cfg *config.EmailConfig) (port.EmailSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	return &sesSender{
		client:       sesv2.NewFromConfig(awsCfg),
		from:         fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromAddress),
		dashboardURL: cfg.DashboardURL,
	}, nil
}

func (s *sesSender) SendKeyCreatedEmail(ctx context.Context, toEmail, keyName, keyPrefix string) error {
	subject := "A new Parserator API key was created"
	text := fmt.Sprintf("A new API key %q (%s...) was created on your account.\n\n"+
		"If this wasn't you, deactivate it at %s/keys.\n\nParserator", keyName, keyPrefix, s.dashboardURL)
	html := buildKeyCreatedHTML(keyName, keyPrefix, s.dashboardURL+"/keys")
	return s.send(ctx, toEmail, subject, html, text)
}

func (s *sesSender) SendQuotaWarningEmail(ctx context.Context, toEmail string, used, limit int) error {
	subject := "You've used 80% of your monthly Parserator quota"
	text := fmt.Sprintf("Your account has used %d of %d parse requests this month.\n\n"+
		"Requests beyond the limit are rejected until the quota resets on the 1st. "+
		"Upgrade at %s/billing.\n\nParserator", used, limit, s.dashboardURL)
	html := buildQuotaWarningHTML(used, limit, s.dashboardURL+"/billing")
	return s.send(ctx, toEmail, subject, html, text)
}

func (s *sesSender) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &s.from,
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

const emailFooter = `<hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Parserator - Structured data from unstructured text</p>`

func buildKeyCreatedHTML(keyName, keyPrefix, keysURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">New API key created</h2>
  <p>A new API key <strong>%s</strong> (<code>%s...</code>) was created on your account.</p>
  <p>If you didn't create it, deactivate it right away:</p>
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Manage Keys</a>
  </p>
  %s
</body>
</html>`, keyName, keyPrefix, keysURL, emailFooter)
}

func buildQuotaWarningHTML(used, limit int, billingURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Approaching your monthly limit</h2>
  <p>Your account has used <strong>%d</strong> of <strong>%d</strong> parse requests this month.</p>
  <p>Requests beyond the limit are rejected until the quota resets on the 1st.</p>
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Upgrade Plan</a>
  </p>
  %s
</body>
</html>`, used, limit, billingURL, emailFooter)
}
