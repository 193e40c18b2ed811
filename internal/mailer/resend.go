package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Compile-time interface check
var _ Sender = (*ResendSender)(nil)

// ResendSender delivers email through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender using the given API key and from address.
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// Send delivers one email.
func (r *ResendSender) Send(ctx context.Context, to, subject, html string) error {
	_, err := r.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
