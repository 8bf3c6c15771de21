package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bloodlab-platform/internal/analytics"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/internal/reminders"
)

type staticReminders struct {
	events []reminders.Event
	err    error
}

func (s staticReminders) List(context.Context) ([]reminders.Event, error) { return s.events, s.err }

func TestGetDashboardOverview(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Users.Insert(ctx, records.User{ID: "u1", Name: "Asha", Status: records.UserActive}))
	require.NoError(t, store.Bookings.InsertMany(ctx, []records.Booking{
		{ID: "b1", UserID: "u1", Date: "2026-03-10", Amount: 350, Quantity: 1, Status: records.BookingPending},
		{ID: "b2", UserID: "u1", Date: "2026-03-12", Amount: 500, Quantity: 1, Status: records.BookingConfirmed},
		{ID: "b3", UserID: "u1", Date: "2026-03-15", Amount: 900, Quantity: 1, Status: records.BookingPendingUPI},
		{ID: "b4", UserID: "u1", Date: "2026-03-01", Amount: 200, Quantity: 1, Status: records.BookingCancelled},
		{ID: "b5", UserID: "u1", Date: "2026-03-09", Amount: 1999, Quantity: 1, Status: records.BookingCompleted},
	}))
	sentAt := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	rem := staticReminders{events: []reminders.Event{
		{ID: "r1"},
		{ID: "r2", Sent: true, SentAt: &sentAt, SID: "SM1"},
		{ID: "r3", Sent: true, SentAt: &sentAt, Error: "user not logged in"},
	}}

	h := NewAdminDashboardHandler(analytics.NewService(analytics.NewRecordSource(store)), store, rem, time.UTC, nil)
	h.now = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }

	rec := serve(http.HandlerFunc(h.GetDashboardOverview), http.MethodGet, "/api/admin/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DashboardOverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Stats.TotalBookings)
	assert.Equal(t, int64(3949), resp.Stats.TotalRevenue)
	assert.Equal(t, BookingMetrics{Today: 1, Upcoming: 2, AwaitingPay: 1, CancelledCount: 1}, resp.Bookings)
	assert.Equal(t, ReminderMetrics{Queued: 1, Sent: 1, Failed: 1}, resp.Reminders)

	types := make([]string, 0, len(resp.PendingActions))
	for _, a := range resp.PendingActions {
		types = append(types, a.Type)
	}
	assert.Equal(t, []string{"confirm_bookings", "reconcile_payments", "failed_reminders"}, types)
}

func TestGetDashboardOverview_ReminderErrorIsNotFatal(t *testing.T) {
	store := newTestStore(t)
	h := NewAdminDashboardHandler(analytics.NewService(analytics.NewRecordSource(store)), store, staticReminders{err: errors.New("redis down")}, nil, nil)

	rec := serve(http.HandlerFunc(h.GetDashboardOverview), http.MethodGet, "/api/admin/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, rec.Body.Bytes(), "pendingActions")))
}

func mustField(t *testing.T, body []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	return m[field]
}
