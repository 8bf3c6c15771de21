package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// emailCategory tags every lab email so provider dashboards can filter them.
const emailCategory = "bloodlab"

// EmailSender delivers one email. SendGrid, SES and the stub implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is one patient email. Kind names the reminder or auth message
// it carries and is forwarded to the provider as a tag.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
	Kind    Kind
}

func (m EmailMessage) html() string {
	if m.HTML != "" {
		return m.HTML
	}
	return "<p>" + strings.ReplaceAll(m.Body, "\n", "<br>") + "</p>"
}

// MaskEmail hides the local part of an address for logs: a***@example.com.
func MaskEmail(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 0 {
		return "***"
	}
	return addr[:1] + "***" + addr[at:]
}

// SendGridConfig configures the lab's SendGrid account.
type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// ReplyTo routes patient replies to the front desk instead of the sender.
	ReplyTo string
}

// SendGridSender sends lab emails through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	cfg    SendGridConfig
	logger *logging.Logger
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "BloodLab"
	}
	return &SendGridSender{client: sendgrid.NewSendClient(cfg.APIKey), cfg: cfg, logger: logger}
}

// build assembles the v3 payload: plain text first, then HTML, tagged with
// the lab category and the message kind.
func (s *SendGridSender) build(msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail))
	m.Subject = msg.Subject
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", msg.Body), mail.NewContent("text/html", msg.html()))
	m.AddCategories(emailCategory)
	if msg.Kind != "" {
		m.AddCategories(string(msg.Kind))
		m.SetCustomArg("kind", string(msg.Kind))
	}
	if s.cfg.ReplyTo != "" {
		m.SetReplyTo(mail.NewEmail(s.cfg.FromName, s.cfg.ReplyTo))
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if msg.To == "" {
		return fmt.Errorf("notify: email recipient required")
	}
	to := MaskEmail(msg.To)

	response, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "to", to, "kind", msg.Kind)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		detail := strings.TrimSpace(response.Body)
		if len(detail) > 200 {
			detail = detail[:200]
		}
		s.logger.Error("sendgrid rejected email", "status", response.StatusCode, "to", to, "kind", msg.Kind, "body", detail)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}
	s.logger.Info("email sent via sendgrid", "to", to, "kind", msg.Kind, "status", response.StatusCode)
	return nil
}

// StubEmailSender keeps emails in memory instead of sending them. Selected
// with EMAIL_PROVIDER=stub.
type StubEmailSender struct {
	mu     sync.Mutex
	sent   []EmailMessage
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	s.logger.Info("stub email captured", "to", MaskEmail(msg.To), "kind", msg.Kind, "subject", msg.Subject)
	return nil
}

// Sent returns a copy of the captured emails in send order.
func (s *StubEmailSender) Sent() []EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EmailMessage(nil), s.sent...)
}
