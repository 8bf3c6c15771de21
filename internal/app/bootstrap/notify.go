package bootstrap

import (
	"context"
	"strings"

	appconfig "github.com/wolfman30/bloodlab-platform/internal/config"
	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/observability/metrics"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Email providers selectable through EMAIL_PROVIDER.
const (
	EmailNone     = "none"
	EmailSendGrid = "sendgrid"
	EmailSES      = "ses"
	EmailStub     = "stub"
)

// BuildNotifySink wires the Twilio sender and the configured email sender
// into a messaging sink. The second return value names the primary channel
// and is empty when neither a text nor an email channel is available.
func BuildNotifySink(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, m *metrics.NotifyMetrics) (notify.Sink, string) {
	if cfg == nil {
		return nil, ""
	}
	if logger == nil {
		logger = logging.Default()
	}

	var sender notify.MessageSender
	if tw := notify.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, logger); tw != nil {
		sender = tw
	} else {
		logger.Warn("twilio credentials missing; text notifications disabled")
	}

	email := buildEmailSender(ctx, cfg, logger)
	if sender == nil && email == nil {
		return nil, ""
	}

	channel := cfg.NotifyChannel
	if sender == nil {
		channel = notify.ChannelEmail
	}
	sink := notify.NewMessagingSink(
		sender,
		email,
		notify.NewRenderer(cfg.LabName, cfg.Location()),
		notify.SinkConfig{
			Channel:      cfg.NotifyChannel,
			FromNumber:   cfg.TwilioFromNumber,
			WhatsAppFrom: cfg.TwilioWhatsAppFrom,
		},
		logger,
		m,
	)
	logger.Info("notifications enabled", "channel", channel, "email_provider", cfg.EmailProvider)
	return sink, channel
}

func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case EmailSendGrid:
		s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
			ReplyTo:   cfg.EmailReplyTo,
		}, logger)
		if s == nil {
			logger.Warn("sendgrid selected without an api key; email disabled")
			return nil
		}
		return s
	case EmailSES:
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load aws config for ses; email disabled", "error", err)
			return nil
		}
		return notify.NewSESSender(NewSESClient(awsCfg, cfg), notify.SESConfig{
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case EmailStub:
		return notify.NewStubEmailSender(logger)
	default:
		return nil
	}
}
