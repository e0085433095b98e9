package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/leadtriage/pkg/logging"
)

type sendgridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridSender mails operator alerts through the SendGrid v3 API.
type SendGridSender struct {
	client sendgridAPI
	from   mailbox
	logger *logging.Logger
}

// NewSendGridSender returns nil without an API key so callers can treat email
// as disabled.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	return newSendGridSender(sendgrid.NewSendClient(cfg.APIKey), newMailbox(cfg.FromEmail, cfg.FromName), logger)
}

func newSendGridSender(client sendgridAPI, from mailbox, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendGridSender{client: client, from: from, logger: logger.Component("notify.email")}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return ErrEmailNotConfigured
	}

	resp, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		s.logger.Error("operator email failed", append(msg.logFields("sendgrid"), "error", err)...)
		return fmt.Errorf("notify: sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("operator email rejected", append(msg.logFields("sendgrid"), "status", resp.StatusCode, "body", resp.Body)...)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}
	s.logger.Info("operator email sent", append(msg.logFields("sendgrid"), "status", resp.StatusCode)...)
	return nil
}

func (s *SendGridSender) build(msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.from.name, s.from.email))
	m.Subject = msg.Subject
	m.AddCategories(alertCategory)

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	if msg.LeadID != "" {
		p.SetCustomArg("lead_id", msg.LeadID)
	}
	m.AddPersonalizations(p)

	m.AddContent(mail.NewContent("text/plain", msg.Body), mail.NewContent("text/html", msg.htmlBody()))
	return m
}

var _ EmailSender = (*SendGridSender)(nil)
