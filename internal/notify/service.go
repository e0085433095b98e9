package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/leadtriage/internal/leads"
	"github.com/wolfman30/leadtriage/internal/messaging/templates"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// ChatSender delivers operator alerts into a chat conversation.
type ChatSender interface {
	Send(ctx context.Context, kind, conversationID, text string) error
}

// Config names the operator destinations. Empty values disable that channel.
type Config struct {
	OperatorConversationID string
	OperatorEmails         []string
}

// Service handles sending lead notifications to operators.
type Service struct {
	email    EmailSender
	chat     ChatSender
	cfg      Config
	logger   *logging.Logger
	renderer templates.Renderer
}

// NewService creates a notification service. Either sender may be nil.
func NewService(email EmailSender, chat ChatSender, cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:  email,
		chat:   chat,
		cfg:    cfg,
		logger: logger.Component("notify"),
	}
}

const newLeadAlert = `New {{.PriorityCategory}} priority lead {{.ID}}
From: {{.SenderLabel}} ({{.SourceDescription}})
{{- with .Fields.Name}}
Name: {{.}}{{end}}
{{- with .Fields.Phone}}
Phone: {{.}}{{end}}
{{- with .Fields.Email}}
Email: {{.}}{{end}}
{{- if .Fields.Amount}}
Amount: {{printf "%.0f" .Fields.Amount}}{{end}}
{{- with .Fields.Purpose}}
Purpose: {{.}}{{end}}
{{- with .Fields.LocationCity}}
City: {{.}}{{end}}
Message: {{.RawMessage}}`

const statusAlert = `Lead {{.ID}} is now {{.Status}}{{with .Fields.Name}} ({{.}}){{end}}`

// NotifyNewLead alerts the operator conversation and mailbox about a new lead.
// Every channel is attempted; failures are joined.
func (s *Service) NotifyNewLead(ctx context.Context, lead leads.Lead) error {
	if s == nil {
		return nil
	}
	body, err := s.renderer.Render("new_lead", newLeadAlert, lead)
	if err != nil {
		return fmt.Errorf("notify: render new lead alert: %w", err)
	}

	var errs []error
	if err := s.sendChat(ctx, "alert", body); err != nil {
		errs = append(errs, err)
	}
	subject := fmt.Sprintf("New %s priority lead", lead.PriorityCategory)
	if name := lead.Fields.Name; name != "" {
		subject += " - " + name
	}
	if err := s.sendEmail(ctx, lead.ID, subject, body); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		s.logger.Info("new lead notification sent", "lead_id", lead.ID)
	}
	return errors.Join(errs...)
}

// NotifyStatusChange alerts the operator conversation when a follow-up closed
// or lost a lead. Other transitions are not announced.
func (s *Service) NotifyStatusChange(ctx context.Context, lead leads.Lead) error {
	if s == nil || (lead.Status != leads.StatusClosed && lead.Status != leads.StatusLost) {
		return nil
	}
	body, err := s.renderer.Render("status", statusAlert, lead)
	if err != nil {
		return fmt.Errorf("notify: render status alert: %w", err)
	}
	return s.sendChat(ctx, "alert", body)
}

func (s *Service) sendChat(ctx context.Context, kind, body string) error {
	if s.chat == nil || s.cfg.OperatorConversationID == "" {
		return nil
	}
	if err := s.chat.Send(ctx, kind, s.cfg.OperatorConversationID, body); err != nil {
		s.logger.Error("notify: operator chat alert failed", "error", err)
		return err
	}
	return nil
}

func (s *Service) sendEmail(ctx context.Context, leadID, subject, body string) error {
	if s.email == nil {
		return nil
	}
	var errs []error
	for _, recipient := range s.cfg.OperatorEmails {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" {
			continue
		}
		if err := s.email.Send(ctx, EmailMessage{To: recipient, Subject: subject, Body: body, LeadID: leadID}); err != nil {
			s.logger.Error("notify: failed to send email", "error", err, "to", recipient)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
