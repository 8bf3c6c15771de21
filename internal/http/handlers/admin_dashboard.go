package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wolfman30/bloodlab-platform/internal/analytics"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/internal/reminders"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// ReminderLister lists stored reminder events.
type ReminderLister interface {
	List(ctx context.Context) ([]reminders.Event, error)
}

// AdminDashboardHandler handles the main dashboard overview endpoint.
type AdminDashboardHandler struct {
	analytics *analytics.Service
	store     *records.Store
	reminders ReminderLister
	loc       *time.Location
	logger    *logging.Logger
	now       func() time.Time
}

// NewAdminDashboardHandler creates a new admin dashboard handler. Day
// boundaries are computed in loc.
func NewAdminDashboardHandler(svc *analytics.Service, store *records.Store, rem ReminderLister, loc *time.Location, logger *logging.Logger) *AdminDashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AdminDashboardHandler{analytics: svc, store: store, reminders: rem, loc: loc, logger: logger, now: time.Now}
}

// DashboardOverviewResponse contains the main dashboard metrics.
type DashboardOverviewResponse struct {
	Stats          analytics.Stats `json:"stats"`
	Bookings       BookingMetrics  `json:"bookings"`
	Reminders      ReminderMetrics `json:"reminders"`
	PendingActions []PendingAction `json:"pendingActions"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

// BookingMetrics contains booking-related dashboard metrics.
type BookingMetrics struct {
	Today          int `json:"today"`
	Upcoming       int `json:"upcoming"`
	AwaitingPay    int `json:"awaitingPayment"`
	CancelledCount int `json:"cancelled"`
}

// ReminderMetrics contains reminder-related dashboard metrics.
type ReminderMetrics struct {
	Queued int `json:"queued"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// PendingAction represents an action requiring staff attention.
type PendingAction struct {
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// GetDashboardOverview returns the main dashboard overview.
// GET /api/admin/dashboard
func (h *AdminDashboardHandler) GetDashboardOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.analytics.Stats(ctx)
	if err != nil {
		h.logger.Error("failed to load dashboard stats", "error", err)
		jsonError(w, "Failed to fetch statistics", http.StatusInternalServerError)
		return
	}
	bookings, err := h.store.Bookings.List(ctx)
	if err != nil {
		h.logger.Error("failed to load dashboard bookings", "error", err)
		jsonError(w, "Failed to fetch bookings", http.StatusInternalServerError)
		return
	}

	now := h.now()
	resp := DashboardOverviewResponse{
		Stats:       stats,
		Bookings:    h.bookingMetrics(bookings, now),
		GeneratedAt: now.UTC(),
	}

	if h.reminders != nil {
		events, err := h.reminders.List(ctx)
		if err != nil {
			// reminders are optional on the overview
			h.logger.Warn("failed to load reminders for dashboard", "error", err)
		}
		for _, ev := range events {
			switch {
			case !ev.Sent:
				resp.Reminders.Queued++
			case ev.Error != "":
				resp.Reminders.Failed++
			default:
				resp.Reminders.Sent++
			}
		}
	}

	resp.PendingActions = pendingActions(stats, resp.Bookings, resp.Reminders)
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminDashboardHandler) bookingMetrics(bookings []records.Booking, now time.Time) BookingMetrics {
	today := now.In(h.loc).Format(records.DateLayout)
	var m BookingMetrics
	for _, b := range bookings {
		switch b.Status {
		case records.BookingCancelled:
			m.CancelledCount++
			continue
		case records.BookingPaymentPending, records.BookingPendingUPI:
			m.AwaitingPay++
		}
		if b.Status == records.BookingCompleted {
			continue
		}
		// YYYY-MM-DD compares chronologically as a string
		switch {
		case b.Date == today:
			m.Today++
		case b.Date > today:
			m.Upcoming++
		}
	}
	return m
}

func pendingActions(stats analytics.Stats, b BookingMetrics, rem ReminderMetrics) []PendingAction {
	actions := []PendingAction{}
	if stats.PendingBookings > 0 {
		actions = append(actions, PendingAction{
			Type: "confirm_bookings", Priority: "high",
			Description: "Bookings waiting for confirmation", Count: stats.PendingBookings,
		})
	}
	if b.AwaitingPay > 0 {
		actions = append(actions, PendingAction{
			Type: "reconcile_payments", Priority: "medium",
			Description: "Bookings awaiting payment", Count: b.AwaitingPay,
		})
	}
	if rem.Failed > 0 {
		actions = append(actions, PendingAction{
			Type: "failed_reminders", Priority: "low",
			Description: "Reminders that could not be delivered", Count: rem.Failed,
		})
	}
	return actions
}
