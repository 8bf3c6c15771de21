package reminders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/observability/metrics"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// Sessions reports which users are logged in.
type Sessions interface {
	ActiveUserIDs(ctx context.Context) ([]string, error)
	HasActiveSession(ctx context.Context, userID string) (bool, error)
}

// GenerateReport summarizes one generation pass.
type GenerateReport struct {
	Users    int `json:"users"`
	Bookings int `json:"bookings"`
	Created  int `json:"created"`
	Skipped  int `json:"skipped"`
}

// Generator creates reminder events from booking history. Only active users
// holding a live session are considered.
type Generator struct {
	store    *records.Store
	events   EventStore
	sessions Sessions
	loc      *time.Location
	metrics  *metrics.ReminderMetrics
	logger   *logging.Logger
}

// NewGenerator creates a generator. Booking dates are read as midnight in loc.
func NewGenerator(store *records.Store, events EventStore, sessions Sessions, loc *time.Location, m *metrics.ReminderMetrics, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{store: store, events: events, sessions: sessions, loc: loc, metrics: m, logger: logger}
}

// Run performs one generation pass at now. Re-running it creates nothing new.
func (g *Generator) Run(ctx context.Context, now time.Time) (GenerateReport, error) {
	var report GenerateReport
	userIDs, err := g.sessions.ActiveUserIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("reminders: active users: %w", err)
	}

	for _, userID := range userIDs {
		user, err := g.store.Users.Get(ctx, userID)
		if errors.Is(err, records.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, err
		}
		if user.Status != records.UserActive {
			g.logger.Debug("skipping reminders for inactive user", "user_id", userID)
			continue
		}
		bookings, err := g.store.BookingsForUser(ctx, userID)
		if err != nil {
			return report, err
		}
		report.Users++
		for _, b := range bookings {
			report.Bookings++
			for _, ev := range g.eventsFor(user, b, now) {
				inserted, err := g.events.Insert(ctx, ev)
				if err != nil {
					return report, err
				}
				if !inserted {
					report.Skipped++
					continue
				}
				report.Created++
				g.metrics.ObserveGenerated(string(ev.Kind))
				g.logger.Info("reminder created", "user_id", userID, "booking_id", b.ID, "dedup_key", ev.DedupKey)
			}
		}
	}
	return report, nil
}

func (g *Generator) eventsFor(user records.User, b records.Booking, now time.Time) []Event {
	day, err := b.ParsedDate(g.loc)
	if err != nil {
		g.logger.Warn("booking has unreadable date", "booking_id", b.ID, "date", b.Date)
		return nil
	}
	daysSince := int(math.Floor(now.Sub(day).Hours() / 24))

	newEvent := func(kind notify.Kind, key string) Event {
		return Event{
			ID:          uuid.NewString(),
			DedupKey:    key,
			UserID:      user.ID,
			BookingID:   b.ID,
			Kind:        kind,
			ScheduledAt: now,
			TestName:    b.TestName,
			TestDate:    b.Date,
			CreatedAt:   now,
		}
	}

	var out []Event
	if daysSince >= 1 && daysSince <= 7 {
		out = append(out, newEvent(KindMedicine, medicineKey(user.ID, b.ID, daysSince)))
	}
	if daysSince == 30 {
		out = append(out, newEvent(KindFollowup, followupKey(user.ID, b.ID)))
	}
	if daysSince > 0 && daysSince%365 == 0 {
		out = append(out, newEvent(KindAnnual, annualKey(user.ID, b.ID, daysSince/365)))
	}
	return out
}
