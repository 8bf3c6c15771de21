package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

var tracer = otel.Tracer("bloodlab.internal.payments")

const (
	ProviderRazorpay = "razorpay"
	ProviderUPI      = "upi"
	defaultCurrency  = "INR"
)

var (
	ErrInvalidAmount       = errors.New("payments: invalid amount")
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	ErrSecretNotConfigured = errors.New("payments: razorpay secret not configured")
	ErrInvalidSignature    = errors.New("payments: invalid signature")
	ErrBookingNotFound     = errors.New("payments: booking not found")
	ErrOrderMismatch       = errors.New("payments: order does not belong to booking")
)

// Identity resolves the logged-in user of a request.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// OrderInput is a request to start a payment. Amount is in whole rupees.
type OrderInput struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// OrderResult tells the browser how to collect the payment.
type OrderResult struct {
	Provider  string `json:"provider"`
	BookingID string `json:"bookingId"`
	Order     *Order `json:"order,omitempty"`
	Key       string `json:"key,omitempty"`
	UPIVPA    string `json:"upiVpa,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
}

// VerifyInput is the checkout callback forwarded by the browser.
type VerifyInput struct {
	Provider  string `json:"provider"`
	BookingID string `json:"bookingId,omitempty"`
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

// Service starts payments and confirms them against bookings.
type Service struct {
	store    *records.Store
	razorpay *RazorpayClient
	upiVPA   string
	identity Identity
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates the payment service. A nil razorpay client selects the
// UPI fallback.
func NewService(store *records.Store, razorpay *RazorpayClient, upiVPA string, identity Identity, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:    store,
		razorpay: razorpay,
		upiVPA:   upiVPA,
		identity: identity,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateOrder records a payment booking and, when Razorpay is configured,
// opens an order for it.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (OrderResult, error) {
	ctx, span := tracer.Start(ctx, "payments.create_order")
	defer span.End()

	if in.Amount <= 0 {
		return OrderResult{}, ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	now := s.now()
	booking := records.Booking{
		ID:        uuid.NewString(),
		TestName:  "Payment",
		Date:      now.Format(records.DateLayout),
		Amount:    in.Amount,
		Quantity:  1,
		Metadata:  copyNotes(in.Notes),
		CreatedAt: now.UTC(),
	}
	if s.identity != nil {
		if userID, ok := s.identity.CurrentUserID(ctx); ok {
			booking.UserID = userID
		}
	}

	if s.razorpay == nil {
		booking.Status = records.BookingPendingUPI
		booking.Provider = ProviderUPI
		booking.Payment = &records.PaymentInfo{Provider: ProviderUPI, VPA: s.upiVPA, Currency: currency}
		if err := s.store.Bookings.Insert(ctx, booking); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "insert booking")
			return OrderResult{}, fmt.Errorf("payments: create upi booking: %w", err)
		}
		s.logger.Info("upi payment booking created", "booking_id", booking.ID, "amount", in.Amount)
		return OrderResult{Provider: ProviderUPI, BookingID: booking.ID, UPIVPA: s.upiVPA, Amount: in.Amount}, nil
	}

	order, err := s.razorpay.CreateOrder(ctx, OrderRequest{
		Amount:         in.Amount * 100,
		Currency:       currency,
		Receipt:        "rcpt_" + strconv.FormatInt(now.UnixMilli(), 10),
		PaymentCapture: 1,
		Notes:          in.Notes,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "razorpay order")
		return OrderResult{}, err
	}
	span.SetAttributes(attribute.String("bloodlab.order_id", order.ID))

	booking.Status = records.BookingPaymentPending
	booking.Provider = ProviderRazorpay
	booking.Payment = &records.PaymentInfo{Provider: ProviderRazorpay, OrderID: order.ID, Currency: currency}
	if err := s.store.Bookings.Insert(ctx, booking); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert booking")
		return OrderResult{}, fmt.Errorf("payments: create razorpay booking: %w", err)
	}
	s.logger.Info("razorpay payment booking created", "booking_id", booking.ID, "order_id", order.ID)
	return OrderResult{Provider: ProviderRazorpay, BookingID: booking.ID, Order: &order, Key: s.razorpay.KeyID()}, nil
}

// Verify checks the checkout signature and marks the booking paid.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (records.Booking, error) {
	ctx, span := tracer.Start(ctx, "payments.verify")
	defer span.End()

	if in.Provider != ProviderRazorpay {
		return records.Booking{}, ErrUnsupportedProvider
	}
	if s.razorpay == nil {
		return records.Booking{}, ErrSecretNotConfigured
	}
	if !s.razorpay.VerifySignature(in.OrderID, in.PaymentID, in.Signature) {
		s.logger.Warn("payment signature mismatch", "order_id", in.OrderID, "booking_id", in.BookingID)
		return records.Booking{}, ErrInvalidSignature
	}

	bookingID, err := s.resolveBooking(ctx, in)
	if err != nil {
		return records.Booking{}, err
	}
	paidAt := s.now().UTC()
	updated, err := s.store.Bookings.Update(ctx, bookingID, func(b *records.Booking) error {
		// A signature only proves the order was paid, so the order must be this booking's.
		if b.Payment == nil || b.Payment.OrderID != in.OrderID {
			return ErrOrderMismatch
		}
		b.Status = records.BookingPaid
		b.Payment = &records.PaymentInfo{
			Provider:  ProviderRazorpay,
			OrderID:   in.OrderID,
			PaymentID: in.PaymentID,
			Signature: in.Signature,
			PaidAt:    &paidAt,
		}
		return nil
	})
	if errors.Is(err, records.ErrNotFound) {
		return records.Booking{}, ErrBookingNotFound
	}
	if errors.Is(err, ErrOrderMismatch) {
		s.logger.Warn("payment order does not match booking", "order_id", in.OrderID, "booking_id", bookingID)
		return records.Booking{}, err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark paid")
		return records.Booking{}, fmt.Errorf("payments: mark paid: %w", err)
	}
	s.logger.Info("payment verified", "booking_id", updated.ID, "payment_id", in.PaymentID)
	return updated, nil
}

func (s *Service) resolveBooking(ctx context.Context, in VerifyInput) (string, error) {
	if in.BookingID != "" {
		return in.BookingID, nil
	}
	bookings, err := s.store.Bookings.List(ctx)
	if err != nil {
		return "", fmt.Errorf("payments: list bookings: %w", err)
	}
	for _, b := range bookings {
		if b.Payment != nil && b.Payment.OrderID != "" && b.Payment.OrderID == in.OrderID {
			return b.ID, nil
		}
	}
	return "", ErrBookingNotFound
}

func copyNotes(notes map[string]string) map[string]string {
	if len(notes) == 0 {
		return nil
	}
	out := make(map[string]string, len(notes))
	for k, v := range notes {
		out[k] = v
	}
	return out
}
