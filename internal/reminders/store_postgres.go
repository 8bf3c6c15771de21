package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/records"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps events in reminder_events; the unique index on
// dedup_key enforces one event per key.
type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, dedup_key, user_id, booking_id, kind, scheduled_at, sent, sent_at, error, sid, test_name, test_date, created_at`

func (s *PostgresStore) Insert(ctx context.Context, ev Event) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO reminder_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (dedup_key) DO NOTHING`,
		ev.ID, ev.DedupKey, ev.UserID, ev.BookingID, string(ev.Kind), ev.ScheduledAt,
		ev.Sent, ev.SentAt, ev.Error, ev.SID, ev.TestName, ev.TestDate, ev.CreatedAt,
	)
	if err != nil {
		return false, &records.StorageError{Op: "insert", Kind: eventsKind, Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListDue(ctx context.Context, now time.Time) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM reminder_events
		WHERE NOT sent AND scheduled_at <= $1
		ORDER BY scheduled_at ASC`, now)
	if err != nil {
		return nil, &records.StorageError{Op: "list due", Kind: eventsKind, Err: err}
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) MarkSent(ctx context.Context, id string, d Delivery) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminder_events SET sent = true, sent_at = $2, sid = $3, error = $4
		WHERE id = $1 AND NOT sent`, id, d.SentAt, d.SID, d.Error)
	if err != nil {
		return &records.StorageError{Op: "update", Kind: eventsKind, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrClosed
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Event, error) {
	rows, err := s.db.Query(ctx, `SELECT `+eventColumns+` FROM reminder_events ORDER BY created_at DESC`)
	if err != nil {
		return nil, &records.StorageError{Op: "list", Kind: eventsKind, Err: err}
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var ev Event
		var kind string
		if err := rows.Scan(
			&ev.ID, &ev.DedupKey, &ev.UserID, &ev.BookingID, &kind, &ev.ScheduledAt,
			&ev.Sent, &ev.SentAt, &ev.Error, &ev.SID, &ev.TestName, &ev.TestDate, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("reminders: scan event: %w", err)
		}
		ev.Kind = notify.Kind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}
