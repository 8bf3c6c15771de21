package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

var razorpayTracer = otel.Tracer("bloodlab.internal.payments.razorpay")

// RazorpayClient creates orders over the Razorpay REST API and checks
// checkout signatures.
type RazorpayClient struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewRazorpayClient returns nil when either key is missing.
func NewRazorpayClient(keyID, keySecret string, logger *logging.Logger) *RazorpayClient {
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keySecret) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RazorpayClient{
		keyID:      keyID,
		keySecret:  keySecret,
		baseURL:    "https://api.razorpay.com",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Razorpay API base URL (for testing).
func (c *RazorpayClient) WithBaseURL(baseURL string) *RazorpayClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// KeyID is the public key handed to the browser checkout.
func (c *RazorpayClient) KeyID() string { return c.keyID }

// OrderRequest is the body of POST /v1/orders. Amount is in paise.
type OrderRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// Order is the subset of a Razorpay order we keep.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrder creates a Razorpay order.
func (c *RazorpayClient) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	ctx, span := razorpayTracer.Start(ctx, "razorpay.create_order")
	defer span.End()
	span.SetAttributes(attribute.Int64("bloodlab.amount_paise", req.Amount))

	body, err := json.Marshal(req)
	if err != nil {
		return Order{}, fmt.Errorf("payments: razorpay encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, fmt.Errorf("payments: razorpay request: %w", err)
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return Order{}, fmt.Errorf("payments: razorpay http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("payments: razorpay api status %d: %s", resp.StatusCode, razorpayErrorMessage(raw))
		span.RecordError(err)
		return Order{}, err
	}
	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return Order{}, fmt.Errorf("payments: razorpay decode: %w", err)
	}
	if order.ID == "" {
		return Order{}, fmt.Errorf("payments: razorpay response missing order id")
	}
	c.logger.Info("razorpay order created", "order_id", order.ID, "amount_paise", order.Amount)
	return order, nil
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func razorpayErrorMessage(raw []byte) string {
	var parsed razorpayError
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Description != "" {
		return parsed.Error.Description
	}
	return strings.TrimSpace(string(raw))
}

// Signature is the hex HMAC-SHA256 of "orderID|paymentID" under secret.
func Signature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a checkout callback signature.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
	expected := Signature(c.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
