package reminders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/records"
)

func eventsByKey(t *testing.T, events EventStore) map[string]Event {
	t.Helper()
	all, err := events.List(context.Background())
	require.NoError(t, err)
	out := make(map[string]Event, len(all))
	for _, ev := range all {
		out[ev.DedupKey] = ev
	}
	return out
}

func TestDispatchSkipsUsersWithoutSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u01")
	f.addUser(t, "u01", records.UserActive)
	f.addBooking(t, "b1", "u01", 30)
	_, err := f.gen.Run(ctx, baseNow)
	require.NoError(t, err)

	f.sessions.logout("u01")
	report, err := f.disp.Sweep(ctx, baseNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, report.NotLoggedIn)
	assert.Zero(t, f.sink.calls.Load())

	ev := eventsByKey(t, f.events)["followup:u01:b1"]
	assert.True(t, ev.Sent)
	assert.Equal(t, ErrMsgNotLoggedIn, ev.Error)
	assert.Empty(t, ev.SID)
	require.NotNil(t, ev.SentAt)
}

func TestDispatchMissingUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "ghost")
	_, err := f.events.Insert(ctx, Event{ID: "e1", DedupKey: "manual:e1", UserID: "ghost", Kind: KindAnnual, ScheduledAt: baseNow})
	require.NoError(t, err)

	report, err := f.disp.Sweep(ctx, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.UserNotFound)
	assert.Zero(t, f.sink.calls.Load())
	assert.Equal(t, ErrMsgNoUser, eventsByKey(t, f.events)["manual:e1"].Error)
}

func TestDispatchRecordsSuccessAndFailureWithoutRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u01", "u02")
	f.addUser(t, "u01", records.UserActive)
	f.addUser(t, "u02", records.UserActive)
	f.addBooking(t, "b1", "u01", 2)
	f.addBooking(t, "b2", "u02", 2)
	f.sink.send = func(_ context.Context, user records.User, kind notify.Kind, data notify.TemplateData) notify.Result {
		assert.Equal(t, KindMedicine, kind)
		assert.Equal(t, "Thyroid Profile", data.TestName)
		if user.ID == "u02" {
			return notify.Result{Error: "twilio: 400 invalid number"}
		}
		return notify.Result{Success: true, MessageID: "SM123"}
	}
	_, err := f.gen.Run(ctx, baseNow)
	require.NoError(t, err)

	report, err := f.disp.Sweep(ctx, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Due)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Failed)

	byKey := eventsByKey(t, f.events)
	ok := byKey["medicine:u01:b1:2"]
	assert.True(t, ok.Sent)
	assert.Equal(t, "SM123", ok.SID)
	assert.Empty(t, ok.Error)
	failed := byKey["medicine:u02:b2:2"]
	assert.True(t, failed.Sent)
	assert.Equal(t, "twilio: 400 invalid number", failed.Error)

	report, err = f.disp.Sweep(ctx, baseNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, report.Due)
	assert.Equal(t, int32(2), f.sink.calls.Load())
}

func TestDispatchHungSinkDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u01", "u02", "u03")
	for _, id := range []string{"u01", "u02", "u03"} {
		f.addUser(t, id, records.UserActive)
		f.addBooking(t, "b-"+id, id, 1)
	}
	f.disp.cfg.SinkTimeout = 50 * time.Millisecond
	f.sink.send = func(ctx context.Context, user records.User, _ notify.Kind, _ notify.TemplateData) notify.Result {
		if user.ID == "u02" {
			<-ctx.Done()
			return notify.Result{Error: ctx.Err().Error()}
		}
		return notify.Result{Success: true, MessageID: "SM-" + user.ID}
	}
	_, err := f.gen.Run(ctx, baseNow)
	require.NoError(t, err)

	report, err := f.disp.Sweep(ctx, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Delivered)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, context.DeadlineExceeded.Error(), eventsByKey(t, f.events)["medicine:u02:b-u02:1"].Error)
}

func TestDispatchIgnoresFutureEvents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u01")
	f.addUser(t, "u01", records.UserActive)
	_, err := f.events.Insert(ctx, Event{ID: "e1", DedupKey: "manual:e1", UserID: "u01", Kind: KindFollowup, ScheduledAt: baseNow.Add(time.Hour)})
	require.NoError(t, err)

	report, err := f.disp.Sweep(ctx, baseNow)
	require.NoError(t, err)
	assert.Zero(t, report.Due)
	assert.False(t, eventsByKey(t, f.events)["manual:e1"].Sent)
}

func TestDispatchWithoutSinkClosesEventAsFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u01")
	f.addUser(t, "u01", records.UserActive)
	f.addBooking(t, "b1", "u01", 30)
	_, err := f.gen.Run(ctx, baseNow)
	require.NoError(t, err)

	disp := NewDispatcher(f.store, f.events, f.sessions, nil, DispatcherConfig{}, nil, nil)
	_, err = disp.Sweep(ctx, baseNow.Add(time.Minute))
	require.NoError(t, err)

	ev := eventsByKey(t, f.events)["followup:u01:b1"]
	assert.True(t, ev.Sent)
	assert.Equal(t, "notifications not configured", ev.Error)
}
