package analytics

import (
	"context"

	"github.com/wolfman30/bloodlab-platform/internal/records"
)

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers        int   `json:"totalUsers"`
	TotalBookings     int   `json:"totalBookings"`
	TotalRevenue      int64 `json:"totalRevenue"`
	ActiveUsers       int   `json:"activeUsers"`
	PendingBookings   int   `json:"pendingBookings"`
	CompletedBookings int   `json:"completedBookings"`
}

// Source supplies the aggregates behind the dashboard. Month keys are
// "YYYY-MM".
type Source interface {
	Stats(ctx context.Context) (Stats, error)
	UserGrowth(ctx context.Context) (map[string]int, error)
	Revenue(ctx context.Context) (map[string]int64, error)
	BookingAmounts(ctx context.Context, userID string) ([]int64, error)
}

// RecordSource aggregates in memory over the record store.
type RecordSource struct {
	store *records.Store
}

func NewRecordSource(store *records.Store) *RecordSource {
	return &RecordSource{store: store}
}

func (s *RecordSource) Stats(ctx context.Context) (Stats, error) {
	users, err := s.store.Users.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	bookings, err := s.store.Bookings.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{TotalUsers: len(users), TotalBookings: len(bookings)}
	for _, u := range users {
		if u.Status == records.UserActive {
			st.ActiveUsers++
		}
	}
	for _, b := range bookings {
		st.TotalRevenue += b.Amount
		switch b.Status {
		case records.BookingPending:
			st.PendingBookings++
		case records.BookingCompleted:
			st.CompletedBookings++
		}
	}
	return st, nil
}

func (s *RecordSource) UserGrowth(ctx context.Context) (map[string]int, error) {
	users, err := s.store.Users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int)
	for _, u := range users {
		if u.RegistrationDate.IsZero() {
			continue
		}
		out[u.RegistrationDate.UTC().Format("2006-01")]++
	}
	return out, nil
}

func (s *RecordSource) Revenue(ctx context.Context) (map[string]int64, error) {
	bookings, err := s.store.Bookings.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	for _, b := range bookings {
		if len(b.Date) < 7 {
			continue
		}
		out[b.Date[:7]] += b.Amount
	}
	return out, nil
}

func (s *RecordSource) BookingAmounts(ctx context.Context, userID string) ([]int64, error) {
	bookings, err := s.store.Bookings.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, b := range bookings {
		if b.UserID == userID {
			out = append(out, b.Amount)
		}
	}
	return out, nil
}
