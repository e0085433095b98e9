package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/leadtriage/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

type SESConfig struct {
	FromEmail string
	FromName  string
}

// SESSender mails operator alerts through SES v2, tagging each message with
// its category and lead id.
type SESSender struct {
	client sesAPI
	from   mailbox
	logger *logging.Logger
}

// NewSESSender returns nil for a nil client.
func NewSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SESSender{client: client, from: newMailbox(cfg.FromEmail, cfg.FromName), logger: logger.Component("notify.email")}
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return ErrEmailNotConfigured
	}

	out, err := s.client.SendEmail(ctx, s.build(msg))
	if err != nil {
		s.logger.Error("operator email failed", append(msg.logFields("ses"), "error", err)...)
		return fmt.Errorf("notify: ses: %w", err)
	}
	s.logger.Info("operator email sent", append(msg.logFields("ses"), "message_id", aws.ToString(out.MessageId))...)
	return nil
}

func (s *SESSender) build(msg EmailMessage) *sesv2.SendEmailInput {
	body := &types.Body{}
	if msg.Body != "" {
		body.Text = utf8(msg.Body)
	}
	if html := msg.htmlBody(); html != "" {
		body.Html = utf8(html)
	}

	tags := []types.MessageTag{{Name: aws.String("category"), Value: aws.String(alertCategory)}}
	if msg.LeadID != "" {
		tags = append(tags, types.MessageTag{Name: aws.String("lead_id"), Value: aws.String(msg.LeadID)})
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from.String()),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: utf8(msg.Subject), Body: body},
		},
		EmailTags: tags,
	}
}

func utf8(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

var _ EmailSender = (*SESSender)(nil)
