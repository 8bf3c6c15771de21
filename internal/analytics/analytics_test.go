package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bloodlab-platform/internal/records"
)

func seededStore(t *testing.T) *records.Store {
	t.Helper()
	store, err := records.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Users.InsertMany(ctx, []records.User{
		{ID: "u1", Name: "Asha", Status: records.UserActive, RegistrationDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
		{ID: "u2", Name: "Ravi", Status: records.UserActive, RegistrationDate: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)},
		{ID: "u3", Name: "Meena", Status: records.UserSuspended, RegistrationDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}))
	require.NoError(t, store.Bookings.InsertMany(ctx, []records.Booking{
		{ID: "b1", UserID: "u1", TestName: "CBC", Date: "2026-01-10", Amount: 350, Quantity: 1, Status: records.BookingPending},
		{ID: "b2", UserID: "u1", TestName: "Full Body", Date: "2026-02-02", Amount: 1999, Quantity: 1, Status: records.BookingCompleted},
		{ID: "b3", UserID: "u2", TestName: "Lipid", Date: "2026-02-15", Amount: 450, Quantity: 1, Status: records.BookingPaid},
	}))
	return store
}

func TestRecordSource(t *testing.T) {
	ctx := context.Background()
	src := NewRecordSource(seededStore(t))

	st, err := src.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		TotalUsers:        3,
		TotalBookings:     3,
		TotalRevenue:      2799,
		ActiveUsers:       2,
		PendingBookings:   1,
		CompletedBookings: 1,
	}, st)

	growth, err := src.UserGrowth(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2026-01": 2, "2026-02": 1}, growth)

	revenue, err := src.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2026-01": 350, "2026-02": 2449}, revenue)

	amounts, err := src.BookingAmounts(ctx, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{350, 1999}, amounts)
}

func TestScoreAmounts(t *testing.T) {
	tests := []struct {
		name    string
		amounts []int64
		want    int
	}{
		{"no bookings", nil, 70},
		{"small booking", []int64{350}, 68},
		{"half rounds up", []int64{100}, 70},
		{"per booking cap", []int64{5000}, 60},
		{"several", []int64{1000, 1000, 2000}, 50},
		{"floor", []int64{9999, 9999, 9999, 9999, 9999, 9999, 9999}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreAmounts(tt.amounts))
		})
	}
}

func TestService_HealthScore(t *testing.T) {
	svc := NewService(NewRecordSource(seededStore(t)))
	fixed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	score, err := svc.HealthScore(context.Background(), "u1")
	require.NoError(t, err)
	// 70 - 1.75 - 9.995 = 58.255
	assert.Equal(t, HealthScore{UserID: "u1", Score: 58, ComputedAt: fixed}, score)

	score, err = svc.HealthScore(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 70, score.Score)
}

func TestSQLSource(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	src := NewSQLSource(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT (SELECT COUNT(*) FROM users)")).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d", "e", "f"}).AddRow(3, 2, 3, 2799, 1, 1))
	st, err := src.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalUsers)
	assert.Equal(t, 2, st.ActiveUsers)
	assert.Equal(t, int64(2799), st.TotalRevenue)
	assert.Equal(t, 1, st.CompletedBookings)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users GROUP BY month")).
		WillReturnRows(sqlmock.NewRows([]string{"month", "count"}).AddRow("2026-01", 2).AddRow("2026-02", 1))
	growth, err := src.UserGrowth(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2026-01": 2, "2026-02": 1}, growth)

	mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE length(booking_date) >= 7 GROUP BY month")).
		WillReturnRows(sqlmock.NewRows([]string{"month", "sum"}).AddRow("2026-01", 350))
	revenue, err := src.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"2026-01": 350}, revenue)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT amount FROM bookings WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow(350).AddRow(1999))
	amounts, err := src.BookingAmounts(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []int64{350, 1999}, amounts)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("connection reset"))
	_, err = NewSQLSource(db).Stats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analytics: stats")
}

type failingSource struct{ Source }

func (failingSource) Stats(context.Context) (Stats, error) { return Stats{}, errors.New("down") }

type staticIdentity string

func (s staticIdentity) CurrentUserID(context.Context) (string, bool) {
	return string(s), s != ""
}

func TestHandler(t *testing.T) {
	h := NewHandler(NewService(NewRecordSource(seededStore(t))), staticIdentity("u2"), nil)
	r := chi.NewRouter()
	r.Route("/api/analytics", h.AdminRoutes)
	r.Get("/api/healthscore/{userID}", h.HealthScore)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/api/analytics/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalUsers":3,"totalBookings":3,"totalRevenue":2799,"activeUsers":2,"pendingBookings":1,"completedBookings":1}`, rec.Body.String())

	rec = get("/api/analytics/revenue")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"2026-01":350,"2026-02":2449}`, rec.Body.String())

	rec = get("/api/analytics/user-growth")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"2026-01":2,"2026-02":1}`, rec.Body.String())

	rec = get("/api/healthscore/u2")
	require.Equal(t, http.StatusOK, rec.Code)
	var score HealthScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &score))
	assert.Equal(t, "u2", score.UserID)
	assert.Equal(t, 68, score.Score)

	broken := chi.NewRouter()
	broken.Route("/api/analytics", NewHandler(NewService(failingSource{}), nil, nil).AdminRoutes)
	rec = httptest.NewRecorder()
	broken.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analytics/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch statistics"}`, rec.Body.String())
}

func TestHealthScoreOnlyForOwner(t *testing.T) {
	svc := NewService(NewRecordSource(seededStore(t)))
	route := func(id Identity) http.Handler {
		r := chi.NewRouter()
		r.Get("/api/healthscore/{userID}", NewHandler(svc, id, nil).HealthScore)
		return r
	}
	get := func(h http.Handler, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get(route(staticIdentity("u1")), "/api/healthscore/u2")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Forbidden"}`, rec.Body.String())

	rec = get(route(staticIdentity("")), "/api/healthscore/u2")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(route(nil), "/api/healthscore/u2")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(route(staticIdentity("u1")), "/api/healthscore/u1")
	assert.Equal(t, http.StatusOK, rec.Code)
}
