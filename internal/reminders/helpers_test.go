package reminders

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

var baseNow = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

type fakeSessions struct {
	mu     sync.Mutex
	active map[string]bool
}

func newSessions(userIDs ...string) *fakeSessions {
	s := &fakeSessions{active: map[string]bool{}}
	for _, id := range userIDs {
		s.active[id] = true
	}
	return s
}

func (s *fakeSessions) ActiveUserIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, ok := range s.active {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeSessions) HasActiveSession(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[userID], nil
}

func (s *fakeSessions) logout(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, userID)
}

type fakeSink struct {
	calls atomic.Int32
	send  func(ctx context.Context, user records.User, kind notify.Kind, data notify.TemplateData) notify.Result
}

func (f *fakeSink) Send(ctx context.Context, user records.User, kind notify.Kind, data notify.TemplateData) notify.Result {
	f.calls.Add(1)
	if f.send != nil {
		return f.send(ctx, user, kind, data)
	}
	return notify.Result{Success: true, MessageID: "SM" + user.ID, Channel: notify.ChannelWhatsApp}
}

type fixture struct {
	store    *records.Store
	events   *JSONStore
	sessions *fakeSessions
	sink     *fakeSink
	gen      *Generator
	disp     *Dispatcher
}

func newFixture(t *testing.T, activeUsers ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := records.NewJSONStore(dir)
	require.NoError(t, err)
	events, err := NewJSONStore(dir)
	require.NoError(t, err)
	f := &fixture{store: store, events: events, sessions: newSessions(activeUsers...), sink: &fakeSink{}}
	f.gen = NewGenerator(store, events, f.sessions, time.UTC, nil, logging.Default())
	f.disp = NewDispatcher(store, events, f.sessions, f.sink, DispatcherConfig{SinkTimeout: time.Second, Concurrency: 4}, nil, logging.Default())
	return f
}

func (f *fixture) addUser(t *testing.T, id string, status records.UserStatus) {
	t.Helper()
	require.NoError(t, f.store.Users.Insert(context.Background(), records.User{ID: id, Name: "User " + id, Phone: "98765432" + id[len(id)-2:], Status: status}))
}

func (f *fixture) addBooking(t *testing.T, id, userID string, daysAgo int) {
	t.Helper()
	require.NoError(t, f.store.Bookings.Insert(context.Background(), records.Booking{
		ID:       id,
		UserID:   userID,
		TestName: "Thyroid Profile",
		Date:     baseNow.AddDate(0, 0, -daysAgo).Format(records.DateLayout),
		Time:     "10:00",
		Amount:   500,
		Quantity: 1,
		Status:   records.BookingCompleted,
	}))
}

func dedupKeys(t *testing.T, events EventStore) []string {
	t.Helper()
	all, err := events.List(context.Background())
	require.NoError(t, err)
	keys := make([]string, 0, len(all))
	for _, ev := range all {
		keys = append(keys, ev.DedupKey)
	}
	return keys
}
