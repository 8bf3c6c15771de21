package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/bloodlab-platform/internal/observability/metrics"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

var sinkTracer = otel.Tracer("bloodlab.internal.notify")

// Result is the outcome of one send. Failures are values, never errors.
type Result struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Sink delivers a templated notification to a user.
type Sink interface {
	Send(ctx context.Context, user records.User, kind Kind, data TemplateData) Result
}

// MessageSender sends a text message and returns the provider message id.
type MessageSender interface {
	SendMessage(ctx context.Context, from, to, body string) (string, error)
}

// Channels a MessagingSink can use for the primary send.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
	ChannelEmail    = "email"
)

// SinkConfig configures a MessagingSink.
type SinkConfig struct {
	Channel      string
	FromNumber   string
	WhatsAppFrom string
}

// MessagingSink renders a message and sends it over WhatsApp or SMS, with
// email as a second channel when the user has an address.
type MessagingSink struct {
	sender   MessageSender
	email    EmailSender
	renderer *Renderer
	cfg      SinkConfig
	logger   *logging.Logger
	metrics  *metrics.NotifyMetrics
}

// NewMessagingSink builds a sink. sender and email may be nil.
func NewMessagingSink(sender MessageSender, email EmailSender, renderer *Renderer, cfg SinkConfig, logger *logging.Logger, m *metrics.NotifyMetrics) *MessagingSink {
	if logger == nil {
		logger = logging.Default()
	}
	if renderer == nil {
		renderer = NewRenderer("", nil)
	}
	if cfg.Channel != ChannelSMS {
		cfg.Channel = ChannelWhatsApp
	}
	return &MessagingSink{sender: sender, email: email, renderer: renderer, cfg: cfg, logger: logger, metrics: m}
}

// Send renders and delivers a message. The message succeeds if any channel accepts it.
func (s *MessagingSink) Send(ctx context.Context, user records.User, kind Kind, data TemplateData) (res Result) {
	ctx, span := sinkTracer.Start(ctx, "notify.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("bloodlab.user_id", user.ID),
		attribute.String("bloodlab.kind", string(kind)),
	)
	defer func() {
		if r := recover(); r != nil {
			res = Result{Error: fmt.Sprintf("notify: panic: %v", r)}
			span.RecordError(errors.New(res.Error))
		}
	}()

	subject, body, err := s.renderer.Render(user, kind, data)
	if err != nil {
		span.RecordError(err)
		return Result{Error: err.Error()}
	}

	primary := s.sendText(ctx, user, body)
	if s.email != nil && user.Email != "" {
		emailRes := s.sendEmail(ctx, user, kind, subject, body)
		if !primary.Success && emailRes.Success {
			primary = emailRes
		}
	}
	if !primary.Success {
		span.RecordError(errors.New(primary.Error))
		s.logger.Warn("notification failed", "user_id", user.ID, "kind", kind, "error", primary.Error)
	}
	return primary
}

func (s *MessagingSink) sendText(ctx context.Context, user records.User, body string) Result {
	channel := s.cfg.Channel
	if s.sender == nil {
		return Result{Channel: channel, Error: fmt.Sprintf("twilio %s not configured", channel)}
	}
	phone := NormalizePhone(user.Phone)
	if phone == "" {
		return Result{Channel: channel, Error: "user has no phone number"}
	}
	from, to := s.cfg.FromNumber, phone
	if channel == ChannelWhatsApp {
		if s.cfg.WhatsAppFrom == "" {
			return Result{Channel: channel, Error: "twilio whatsapp not configured"}
		}
		from, to = WhatsAppAddress(s.cfg.WhatsAppFrom), WhatsAppAddress(phone)
	}

	start := time.Now()
	sid, err := s.sender.SendMessage(ctx, from, to, body)
	if err != nil {
		s.metrics.ObserveSend(channel, "failed", time.Since(start).Seconds())
		return Result{Channel: channel, Error: err.Error()}
	}
	s.metrics.ObserveSend(channel, "sent", time.Since(start).Seconds())
	return Result{Success: true, MessageID: sid, Channel: channel}
}

func (s *MessagingSink) sendEmail(ctx context.Context, user records.User, kind Kind, subject, body string) Result {
	start := time.Now()
	err := s.email.Send(ctx, EmailMessage{
		To:      user.Email,
		ToName:  user.Name,
		Subject: subject,
		Body:    body,
		Kind:    kind,
	})
	if err != nil {
		s.metrics.ObserveSend(ChannelEmail, "failed", time.Since(start).Seconds())
		return Result{Channel: ChannelEmail, Error: err.Error()}
	}
	s.metrics.ObserveSend(ChannelEmail, "sent", time.Since(start).Seconds())
	return Result{Success: true, Channel: ChannelEmail}
}

// SendGreeting sends the post-login greeting in the background. Failures are logged only.
func SendGreeting(ctx context.Context, sink Sink, user records.User, logger *logging.Logger) {
	if sink == nil {
		return
	}
	if logger == nil {
		logger = logging.Default()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		res := sink.Send(ctx, user, KindGreeting, TemplateData{})
		if !res.Success {
			logger.Warn("greeting not delivered", "user_id", user.ID, "error", res.Error)
			return
		}
		logger.Info("greeting sent", "user_id", user.ID, "message_id", res.MessageID)
	}()
}
