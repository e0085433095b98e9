package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/leadtriage/pkg/logging"
)

// ErrEmailNotConfigured is returned by a sender built without a client.
var ErrEmailNotConfigured = errors.New("notify: email sender not configured")

const (
	defaultFromName = "Lead Triage"
	// alertCategory tags every operator mail so provider dashboards can filter it.
	alertCategory = "lead-alert"
)

// EmailSender delivers one operator mail.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one operator mail. LeadID, when set, is attached as provider
// metadata and to log lines.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
	LeadID  string
}

// htmlBody falls back to the plain body so clients that prefer HTML still
// render something.
func (m EmailMessage) htmlBody() string {
	if m.HTML != "" {
		return m.HTML
	}
	return m.Body
}

func (m EmailMessage) logFields(provider string) []any {
	fields := []any{"provider", provider, "to", m.To}
	if m.LeadID != "" {
		fields = append(fields, "lead_id", m.LeadID)
	}
	return fields
}

// mailbox is the From identity shared by the provider senders.
type mailbox struct {
	email string
	name  string
}

func newMailbox(email, name string) mailbox {
	if name == "" {
		name = defaultFromName
	}
	return mailbox{email: email, name: name}
}

func (m mailbox) String() string {
	return fmt.Sprintf("%s <%s>", m.name, m.email)
}

// StubEmailSender only logs. It backs EMAIL_PROVIDER=stub for local runs.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger.Component("notify.email")}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("operator email suppressed", append(msg.logFields("stub"), "subject", msg.Subject)...)
	return nil
}
