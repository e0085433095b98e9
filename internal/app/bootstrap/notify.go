package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/leadtriage/internal/config"
	"github.com/wolfman30/leadtriage/internal/events"
	"github.com/wolfman30/leadtriage/internal/notify"
	"github.com/wolfman30/leadtriage/pkg/logging"
)

// BuildEmailSender picks the operator email backend. It returns nil when no
// operator address or provider credentials are configured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if cfg == nil || strings.TrimSpace(cfg.OperatorEmail) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			logger.Warn("SENDGRID_API_KEY not set; operator email disabled")
			return nil
		}
		return sender
	case "ses":
		if awsCfg == nil || cfg.SESFromEmail == "" {
			logger.Warn("SES email requires AWS config and SES_FROM_EMAIL; operator email disabled")
			return nil
		}
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{FromEmail: cfg.SESFromEmail}, logger)
	case "stub", "log":
		return notify.NewStubEmailSender(logger)
	default:
		logger.Warn("unknown EMAIL_PROVIDER; operator email disabled", "provider", cfg.EmailProvider)
		return nil
	}
}

// OperatorEmails splits OPERATOR_EMAIL on commas.
func OperatorEmails(cfg *appconfig.Config) []string {
	var out []string
	for _, addr := range strings.Split(cfg.OperatorEmail, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

// BuildPublisher returns the SQS lead event publisher or a no-op.
func BuildPublisher(cfg *appconfig.Config, awsCfg *aws.Config) events.Publisher {
	if cfg == nil || awsCfg == nil || strings.TrimSpace(cfg.LeadEventsQueueURL) == "" {
		return events.NopPublisher{}
	}
	return events.NewSQSPublisher(sqs.NewFromConfig(*awsCfg), cfg.LeadEventsQueueURL)
}
