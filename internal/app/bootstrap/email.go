package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	appconfig "github.com/wolfman30/snapstudio-crm/internal/config"
	"github.com/wolfman30/snapstudio-crm/internal/notify"
	"github.com/wolfman30/snapstudio-crm/pkg/logging"
)

// EmailDeps carries the optional clients an email provider may need.
type EmailDeps struct {
	AWS    *aws.Config
	Google []option.ClientOption
}

// BuildEmailSender selects the email provider named by EMAIL_PROVIDER. It
// returns the sender, the provider that was chosen and, when the stub was
// used as a fallback, the reason.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, deps EmailDeps, logger *logging.Logger) (notify.EmailSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub", "missing config"
	}

	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			return sender, "sendgrid", ""
		}
		return notify.NewStubEmailSender(logger), "stub", "SENDGRID_API_KEY not set"
	case "ses":
		if deps.AWS == nil {
			return notify.NewStubEmailSender(logger), "stub", "aws config unavailable"
		}
		client := sesv2.NewFromConfig(*deps.AWS)
		return notify.NewSESSender(client, notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger), "ses", ""
	case "gmail":
		if len(deps.Google) == 0 {
			return notify.NewStubEmailSender(logger), "stub", "google credentials not configured"
		}
		svc, err := gmail.NewService(ctx, deps.Google...)
		if err != nil {
			return notify.NewStubEmailSender(logger), "stub", "gmail service: " + err.Error()
		}
		return notify.NewGmailSender(svc, notify.GmailConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger), "gmail", ""
	case "", "stub":
		return notify.NewStubEmailSender(logger), "stub", ""
	default:
		return notify.NewStubEmailSender(logger), "stub", "unknown provider " + cfg.EmailProvider
	}
}
