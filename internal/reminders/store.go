package reminders

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by MarkSent for an unknown or already sent event.
var ErrClosed = errors.New("reminders: event not found or already sent")

// EventStore persists reminder events. At most one event exists per dedup key.
type EventStore interface {
	// Insert adds ev unless its dedup key is taken; inserted reports which.
	Insert(ctx context.Context, ev Event) (inserted bool, err error)
	// ListDue returns unsent events scheduled at or before now, oldest first.
	ListDue(ctx context.Context, now time.Time) ([]Event, error)
	MarkSent(ctx context.Context, id string, d Delivery) error
	// List returns every event, newest first.
	List(ctx context.Context) ([]Event, error)
}
