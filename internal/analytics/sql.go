package analytics

import (
	"context"
	"database/sql"
	"fmt"

	// registers the "postgres" driver for sql.Open
	_ "github.com/lib/pq"
)

// SQLSource runs the dashboard aggregates inside Postgres.
type SQLSource struct {
	db *sql.DB
}

func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// OpenSQLSource opens a reporting connection with the lib/pq driver.
func OpenSQLSource(dsn string) (*SQLSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("analytics: open: %w", err)
	}
	db.SetMaxOpenConns(4)
	return &SQLSource{db: db}, nil
}

// Close releases the connection pool.
func (s *SQLSource) Close() error { return s.db.Close() }

const statsQuery = `
SELECT
	(SELECT COUNT(*) FROM users),
	(SELECT COUNT(*) FROM users WHERE status = 'active'),
	(SELECT COUNT(*) FROM bookings),
	(SELECT COALESCE(SUM(amount), 0) FROM bookings),
	(SELECT COUNT(*) FROM bookings WHERE status = 'pending'),
	(SELECT COUNT(*) FROM bookings WHERE status = 'completed')`

func (s *SQLSource) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, statsQuery).Scan(
		&st.TotalUsers, &st.ActiveUsers, &st.TotalBookings,
		&st.TotalRevenue, &st.PendingBookings, &st.CompletedBookings,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("analytics: stats: %w", err)
	}
	return st, nil
}

func (s *SQLSource) UserGrowth(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT to_char(registration_date AT TIME ZONE 'UTC', 'YYYY-MM') AS month, COUNT(*)
		 FROM users GROUP BY month ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("analytics: user growth: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var month string
		var n int
		if err := rows.Scan(&month, &n); err != nil {
			return nil, fmt.Errorf("analytics: user growth scan: %w", err)
		}
		out[month] = n
	}
	return out, rows.Err()
}

func (s *SQLSource) Revenue(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT substr(booking_date, 1, 7) AS month, COALESCE(SUM(amount), 0)
		 FROM bookings WHERE length(booking_date) >= 7 GROUP BY month ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("analytics: revenue: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var month string
		var total int64
		if err := rows.Scan(&month, &total); err != nil {
			return nil, fmt.Errorf("analytics: revenue scan: %w", err)
		}
		out[month] = total
	}
	return out, rows.Err()
}

func (s *SQLSource) BookingAmounts(ctx context.Context, userID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT amount FROM bookings WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("analytics: booking amounts: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var amount int64
		if err := rows.Scan(&amount); err != nil {
			return nil, fmt.Errorf("analytics: booking amounts scan: %w", err)
		}
		out = append(out, amount)
	}
	return out, rows.Err()
}
