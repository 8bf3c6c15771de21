package reminders

import (
	"fmt"
	"time"

	"github.com/wolfman30/bloodlab-platform/internal/notify"
)

// Reminder kinds share the notification template names.
const (
	KindMedicine = notify.KindMedicine
	KindFollowup = notify.KindFollowup
	KindAnnual   = notify.KindAnnual
)

// Dispatch outcomes recorded on events that were closed without a send.
const (
	ErrMsgNotLoggedIn = "user not logged in"
	ErrMsgNoUser      = "user not found"
)

// Event is one reminder occurrence. It moves from unsent to sent exactly
// once; SID or Error tells a delivery apart from a failure.
type Event struct {
	ID          string      `json:"id"`
	DedupKey    string      `json:"dedupKey"`
	UserID      string      `json:"userId"`
	BookingID   string      `json:"bookingId,omitempty"`
	Kind        notify.Kind `json:"kind"`
	ScheduledAt time.Time   `json:"scheduledAt"`
	Sent        bool        `json:"sent"`
	SentAt      *time.Time  `json:"sentAt,omitempty"`
	Error       string      `json:"error,omitempty"`
	SID         string      `json:"sid,omitempty"`
	TestName    string      `json:"testName,omitempty"`
	TestDate    string      `json:"testDate,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// Delivery closes an event.
type Delivery struct {
	SentAt time.Time
	SID    string
	Error  string
}

func (d Delivery) apply(ev *Event) {
	at := d.SentAt
	ev.Sent = true
	ev.SentAt = &at
	ev.SID = d.SID
	ev.Error = d.Error
}

func medicineKey(userID, bookingID string, day int) string {
	return fmt.Sprintf("medicine:%s:%s:%d", userID, bookingID, day)
}

func followupKey(userID, bookingID string) string {
	return "followup:" + userID + ":" + bookingID
}

func annualKey(userID, bookingID string, years int) string {
	return fmt.Sprintf("annual:%s:%s:%d", userID, bookingID, years)
}
