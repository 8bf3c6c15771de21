package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

var twilioTracer = otel.Tracer("bloodlab.internal.notify.twilio")

const defaultTwilioBaseURL = "https://api.twilio.com"

// TwilioClient posts messages to Twilio's REST API. WhatsApp and SMS share
// the endpoint; the channel is chosen by the address prefix.
type TwilioClient struct {
	accountSID  string
	authToken   string
	baseURL     string
	httpClient  *http.Client
	logger      *logging.Logger
	maxAttempts int
	retryDelay  func() time.Duration
}

// NewTwilioClient returns nil when credentials are missing.
func NewTwilioClient(accountSID, authToken string, logger *logging.Logger) *TwilioClient {
	if accountSID == "" || authToken == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioClient{
		accountSID:  accountSID,
		authToken:   authToken,
		baseURL:     defaultTwilioBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
		maxAttempts: 3,
		retryDelay: func() time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
	}
}

// WithBaseURL points the client at a different API host.
func (c *TwilioClient) WithBaseURL(baseURL string) *TwilioClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// SendMessage sends one message and returns Twilio's message SID. Only
// attempts Twilio cannot have accepted are retried: a 429, or a connection
// failure before the request was written. A 5xx or a lost response may
// already have queued the message, so those fail without a resend.
func (c *TwilioClient) SendMessage(ctx context.Context, from, to, body string) (string, error) {
	if c == nil {
		return "", errors.New("notify: twilio not configured")
	}
	if to == "" || from == "" {
		return "", errors.New("notify: from and to required")
	}
	if strings.TrimSpace(body) == "" {
		return "", errors.New("notify: body required")
	}

	ctx, span := twilioTracer.Start(ctx, "notify.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("bloodlab.to", to))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", from)
	payload.Set("Body", body)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		sid, retry, err := c.post(ctx, endpoint, payload)
		if err == nil {
			c.logger.Info("twilio message sent", "to", to, "sid", sid)
			return sid, nil
		}
		lastErr = err
		if !retry || attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return "", ctx.Err()
		case <-time.After(c.retryDelay()):
		}
	}
	span.RecordError(lastErr)
	return "", lastErr
}

func (c *TwilioClient) post(ctx context.Context, endpoint string, payload url.Values) (string, bool, error) {
	var wrote bool
	trace := &httptrace.ClientTrace{WroteRequest: func(httptrace.WroteRequestInfo) { wrote = true }}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", false, err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", !wrote && ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed struct {
			SID string `json:"sid"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil || parsed.SID == "" {
			return "", false, fmt.Errorf("twilio send: unreadable response")
		}
		return parsed.SID, false, nil
	}
	retry := resp.StatusCode == http.StatusTooManyRequests
	return "", retry, fmt.Errorf("twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
