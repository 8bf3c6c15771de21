package reminders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

func newTestScheduler(f *fixture) *Scheduler {
	s := NewScheduler(f.gen, f.disp, nil, logging.Default())
	s.now = func() time.Time { return baseNow }
	return s
}

func TestSchedulerSerializesConcurrentPasses(t *testing.T) {
	f := newFixture(t, "u01")
	f.addUser(t, "u01", records.UserActive)
	f.addBooking(t, "b1", "u01", 30)
	s := newTestScheduler(f)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Generate(context.Background())
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := s.Dispatch(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, []string{"followup:u01:b1"}, dedupKeys(t, f.events))
	assert.LessOrEqual(t, f.sink.calls.Load(), int32(1))
}

func TestSchedulerCreateManual(t *testing.T) {
	f := newFixture(t)
	s := newTestScheduler(f)

	ev, err := s.Create(context.Background(), Event{UserID: "u01", Kind: KindAnnual, Sent: true})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "manual:"+ev.ID, ev.DedupKey)
	assert.False(t, ev.Sent)
	assert.True(t, ev.ScheduledAt.Equal(baseNow))

	_, err = s.Create(context.Background(), Event{UserID: "u01", Kind: KindAnnual, DedupKey: ev.DedupKey})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestRunnerRejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	_, err := NewRunner(newTestScheduler(f), RunnerConfig{GenerateSchedule: "not a spec", DispatchSchedule: "@every 1m"}, nil)
	assert.Error(t, err)
}

func TestRunnerStartStop(t *testing.T) {
	f := newFixture(t)
	r, err := NewRunner(newTestScheduler(f), RunnerConfig{GenerateSchedule: "0 9 * * *", DispatchSchedule: "@every 1m", Location: time.UTC}, nil)
	require.NoError(t, err)
	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.Stop(ctx))
}

func TestReminderHandlers(t *testing.T) {
	f := newFixture(t, "u01")
	f.addUser(t, "u01", records.UserActive)
	f.addBooking(t, "b1", "u01", 3)
	router := chi.NewRouter()
	router.Route("/api/admin/reminders", NewHandler(newTestScheduler(f), nil).Routes)

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
		return rec
	}

	rec := do(http.MethodGet, "/api/admin/reminders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(http.MethodPost, "/api/admin/reminders/generate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var gen struct {
		Success bool           `json:"success"`
		Report  GenerateReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gen))
	assert.True(t, gen.Success)
	assert.Equal(t, 1, gen.Report.Created)

	rec = do(http.MethodPost, "/api/admin/reminders", map[string]any{"userId": "u01", "kind": "birthday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPost, "/api/admin/reminders", map[string]any{"userId": "u01", "kind": "annual_checkup", "when": baseNow.Add(-time.Minute)})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(http.MethodPost, "/api/admin/reminders/dispatch", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var disp struct {
		Report DispatchReport `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &disp))
	assert.Equal(t, 2, disp.Report.Delivered)

	rec = do(http.MethodGet, "/api/admin/reminders", nil)
	var events []Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.True(t, ev.Sent)
	}
}
