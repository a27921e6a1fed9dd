package notify

import (
	"context"
	"fmt"
	"os"

	"github.com/resend/resend-go/v2"
)

// EmailService sends escalation email via Resend. It satisfies Mailer.
type EmailService struct {
	client    *resend.Client
	fromEmail string
}

func NewEmailService(apiKey string) *EmailService {
	if apiKey == "" {
		apiKey = os.Getenv("RESEND_API_KEY")
	}

	from := os.Getenv("FROM_EMAIL")
	if from == "" {
		from = "notifications@teamdesk.app"
	}

	return &EmailService{
		client:    resend.NewClient(apiKey),
		fromEmail: from,
	}
}

// Send sends a transactional email.
func (s *EmailService) Send(ctx context.Context, to, subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email via Resend: %w", err)
	}
	return nil
}
