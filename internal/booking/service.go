package booking

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/bloodlab-platform/internal/cart"
	"github.com/wolfman30/bloodlab-platform/internal/observability/metrics"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

var tracer = otel.Tracer("bloodlab.internal.booking")

var mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// Identity resolves the logged-in user of a request.
type Identity interface {
	CurrentUserID(ctx context.Context) (string, bool)
}

// Request is the patient form submitted alongside the cart.
type Request struct {
	Name  string `json:"patientName"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	City  string `json:"city,omitempty"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// Result is returned for an accepted submission. ConfirmationID is the id of
// the first booking created.
type Result struct {
	ConfirmationID string            `json:"id"`
	Bookings       []records.Booking `json:"bookings"`
	Message        string            `json:"message"`
}

// Service turns a cart into booking records.
type Service struct {
	store    *records.Store
	identity Identity
	loc      *time.Location
	metrics  *metrics.BookingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates the booking service. Slot rules are evaluated in loc.
func NewService(store *records.Store, identity Identity, loc *time.Location, m *metrics.BookingMetrics, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, identity: identity, loc: loc, metrics: m, logger: logger, now: time.Now}
}

// Now is the current time in the lab's location.
func (s *Service) Now() time.Time { return s.now().In(s.loc) }

// Location is the lab's time zone.
func (s *Service) Location() *time.Location { return s.loc }

// Submit validates the request, writes one booking per cart line and clears
// the cart. On any error the cart is left as it was.
func (s *Service) Submit(ctx context.Context, c *cart.Cart, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "booking.submit")
	defer span.End()

	lines := c.PricedLines()
	if len(lines) == 0 {
		s.metrics.ObserveSubmission("invalid", 0)
		return Result{}, invalid("cart", MsgEmptyCart)
	}
	userID, ok := s.identity.CurrentUserID(ctx)
	if !ok {
		s.metrics.ObserveSubmission("unauthenticated", 0)
		return Result{}, ErrUnauthenticated
	}
	if err := s.validate(&req); err != nil {
		s.metrics.ObserveSubmission("invalid", 0)
		return Result{}, err
	}

	summary := c.Summary()
	orderMeta := map[string]string{
		"orderSubtotal": strconv.FormatInt(summary.Subtotal, 10),
		"orderDiscount": strconv.FormatInt(summary.Discount, 10),
		"orderTotal":    strconv.FormatInt(summary.Total, 10),
	}
	if summary.PromoCode != "" {
		orderMeta["promoCode"] = summary.PromoCode
	}

	created := s.now().UTC()
	bookings := make([]records.Booking, 0, len(lines))
	for _, line := range lines {
		meta := make(map[string]string, len(orderMeta))
		for k, v := range orderMeta {
			meta[k] = v
		}
		bookings = append(bookings, records.Booking{
			ID:        uuid.NewString(),
			UserID:    userID,
			UserName:  req.Name,
			TestID:    line.TestID,
			TestName:  line.Name,
			Date:      req.Date,
			Time:      req.Time,
			Amount:    line.Amount,
			Quantity:  line.Quantity,
			Status:    records.BookingPending,
			Phone:     req.Phone,
			Email:     req.Email,
			City:      req.City,
			Metadata:  meta,
			CreatedAt: created,
		})
	}
	span.SetAttributes(
		attribute.String("bloodlab.user_id", userID),
		attribute.Int("bloodlab.bookings", len(bookings)),
	)

	if err := s.store.Bookings.InsertMany(ctx, bookings); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store write failed")
		s.metrics.ObserveSubmission("storage_error", 0)
		s.logger.Error("booking write failed", "user_id", userID, "error", err)
		return Result{}, err
	}
	c.Clear()
	s.metrics.ObserveSubmission("created", len(bookings))
	s.logger.Info("bookings created", "user_id", userID, "booking_id", bookings[0].ID, "count", len(bookings))

	return Result{
		ConfirmationID: bookings[0].ID,
		Bookings:       bookings,
		Message:        createdMessage(len(bookings)),
	}, nil
}

func (s *Service) validate(req *Request) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	req.City = strings.TrimSpace(req.City)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)

	if len([]rune(req.Name)) < 3 {
		return invalid("patientName", MsgNameTooShort)
	}
	if !mobilePattern.MatchString(req.Phone) {
		return invalid("phone", MsgInvalidPhone)
	}
	return checkSlot(req.Date, req.Time, s.Now())
}

func createdMessage(n int) string {
	if n == 1 {
		return "1 booking created successfully"
	}
	return fmt.Sprintf("%d bookings created successfully", n)
}
