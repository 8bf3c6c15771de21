package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx pool so tests can substitute pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewPostgresStore returns a store backed by the users, tests and bookings tables.
func NewPostgresStore(db DB) *Store {
	if db == nil {
		panic("records: pgx pool required")
	}
	return &Store{
		Users:    &pgCollection[User]{db: db, spec: userTable},
		Tests:    &pgCollection[Test]{db: db, spec: testTable},
		Bookings: &pgCollection[Booking]{db: db, spec: bookingTable},
	}
}

type tableSpec[T any] struct {
	name    string
	kind    string
	columns []string // columns[0] is the primary key
	orderBy string
	scan    func(row pgx.Row) (T, error)
	values  func(rec T) ([]any, error)
}

func (t tableSpec[T]) selectSQL() string {
	return "SELECT " + strings.Join(t.columns, ", ") + " FROM " + t.name
}

func (t tableSpec[T]) insertSQL() string {
	placeholders := make([]string, len(t.columns))
	for i := range t.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return "INSERT INTO " + t.name + " (" + strings.Join(t.columns, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"
}

func (t tableSpec[T]) updateSQL() string {
	sets := make([]string, 0, len(t.columns)-1)
	for i, col := range t.columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+2))
	}
	return "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") + " WHERE " + t.columns[0] + " = $1"
}

type pgCollection[T any] struct {
	db   DB
	spec tableSpec[T]
}

func (c *pgCollection[T]) List(ctx context.Context) ([]T, error) {
	rows, err := c.db.Query(ctx, c.spec.selectSQL()+" ORDER BY "+c.spec.orderBy)
	if err != nil {
		return nil, storageErr("list", c.spec.kind, err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		rec, err := c.spec.scan(rows)
		if err != nil {
			return nil, storageErr("list", c.spec.kind, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list", c.spec.kind, err)
	}
	return out, nil
}

func (c *pgCollection[T]) Get(ctx context.Context, id string) (T, error) {
	rec, err := c.spec.scan(c.db.QueryRow(ctx, c.spec.selectSQL()+" WHERE "+c.spec.columns[0]+" = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, storageErr("get", c.spec.kind, err)
	}
	return rec, nil
}

func (c *pgCollection[T]) Insert(ctx context.Context, rec T) error {
	args, err := c.spec.values(rec)
	if err != nil {
		return storageErr("insert", c.spec.kind, err)
	}
	if _, err := c.db.Exec(ctx, c.spec.insertSQL(), args...); err != nil {
		return storageErr("insert", c.spec.kind, translateUnique(err))
	}
	return nil
}

func (c *pgCollection[T]) InsertMany(ctx context.Context, recs []T) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return storageErr("insert", c.spec.kind, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := c.spec.insertSQL()
	for _, rec := range recs {
		args, err := c.spec.values(rec)
		if err != nil {
			return storageErr("insert", c.spec.kind, err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return storageErr("insert", c.spec.kind, translateUnique(err))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("insert", c.spec.kind, err)
	}
	return nil
}

func (c *pgCollection[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, error) {
	var zero T
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return zero, storageErr("update", c.spec.kind, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := c.spec.scan(tx.QueryRow(ctx, c.spec.selectSQL()+" WHERE "+c.spec.columns[0]+" = $1 FOR UPDATE", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, storageErr("update", c.spec.kind, err)
	}
	if err := fn(&rec); err != nil {
		return zero, err
	}
	args, err := c.spec.values(rec)
	if err != nil {
		return zero, storageErr("update", c.spec.kind, err)
	}
	// the key column is never rewritten
	args[0] = id
	if _, err := tx.Exec(ctx, c.spec.updateSQL(), args...); err != nil {
		return zero, storageErr("update", c.spec.kind, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, storageErr("update", c.spec.kind, err)
	}
	return rec, nil
}

func (c *pgCollection[T]) Delete(ctx context.Context, id string) error {
	tag, err := c.db.Exec(ctx, "DELETE FROM "+c.spec.name+" WHERE "+c.spec.columns[0]+" = $1", id)
	if err != nil {
		return storageErr("delete", c.spec.kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func translateUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateID, pgErr.ConstraintName)
	}
	return err
}

func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func decodeJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

var userTable = tableSpec[User]{
	name:    "users",
	kind:    "user",
	columns: []string{"id", "name", "email", "phone", "status", "password_hash", "registration_date", "metadata"},
	orderBy: "registration_date ASC",
	scan: func(row pgx.Row) (User, error) {
		var u User
		var status string
		var meta []byte
		if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &status, &u.PasswordHash, &u.RegistrationDate, &meta); err != nil {
			return u, err
		}
		u.Status = UserStatus(status)
		return u, decodeJSON(meta, &u.Metadata)
	},
	values: func(u User) ([]any, error) {
		meta, err := encodeJSON(u.Metadata)
		if err != nil {
			return nil, err
		}
		return []any{u.ID, u.Name, u.Email, u.Phone, string(u.Status), u.PasswordHash, u.RegistrationDate, meta}, nil
	},
}

var testTable = tableSpec[Test]{
	name:    "tests",
	kind:    "test",
	columns: []string{"id", "name", "description", "price", "popularity"},
	orderBy: "popularity DESC, id ASC",
	scan: func(row pgx.Row) (Test, error) {
		var t Test
		err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Price, &t.Popularity)
		return t, err
	},
	values: func(t Test) ([]any, error) {
		return []any{t.ID, t.Name, t.Description, t.Price, t.Popularity}, nil
	},
}

var bookingTable = tableSpec[Booking]{
	name: "bookings",
	kind: "booking",
	columns: []string{"id", "user_id", "user_name", "test_id", "test_name", "booking_date", "booking_time",
		"amount", "quantity", "status", "phone", "email", "city", "provider", "payment", "metadata", "created_at"},
	orderBy: "created_at ASC",
	scan: func(row pgx.Row) (Booking, error) {
		var b Booking
		var status string
		var payment, meta []byte
		if err := row.Scan(&b.ID, &b.UserID, &b.UserName, &b.TestID, &b.TestName, &b.Date, &b.Time,
			&b.Amount, &b.Quantity, &status, &b.Phone, &b.Email, &b.City, &b.Provider, &payment, &meta, &b.CreatedAt); err != nil {
			return b, err
		}
		b.Status = BookingStatus(status)
		if len(payment) > 0 {
			b.Payment = &PaymentInfo{}
			if err := decodeJSON(payment, b.Payment); err != nil {
				return b, err
			}
		}
		return b, decodeJSON(meta, &b.Metadata)
	},
	values: func(b Booking) ([]any, error) {
		var payment []byte
		if b.Payment != nil {
			var err error
			if payment, err = encodeJSON(b.Payment); err != nil {
				return nil, err
			}
		}
		meta, err := encodeJSON(b.Metadata)
		if err != nil {
			return nil, err
		}
		return []any{b.ID, b.UserID, b.UserName, b.TestID, b.TestName, b.Date, b.Time,
			b.Amount, b.Quantity, string(b.Status), b.Phone, b.Email, b.City, b.Provider, payment, meta, b.CreatedAt}, nil
	},
}
