package records

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// Collection is a keyed set of records of one kind.
type Collection[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, rec T) error
	// InsertMany writes every record or none of them.
	InsertMany(ctx context.Context, recs []T) error
	// Update loads the record, applies fn and persists the result. A non-nil
	// error from fn aborts the update.
	Update(ctx context.Context, id string, fn func(*T) error) (T, error)
	Delete(ctx context.Context, id string) error
}

// Store groups the collections the application persists.
type Store struct {
	Users    Collection[User]
	Tests    Collection[Test]
	Bookings Collection[Booking]
}

// BookingsForUser returns a user's bookings, newest first.
func (s *Store) BookingsForUser(ctx context.Context, userID string) ([]Booking, error) {
	all, err := s.Bookings.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Booking
	for _, b := range all {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// FindUserByContact looks a user up by id, email (case-insensitive) or phone.
func (s *Store) FindUserByContact(ctx context.Context, contact string) (User, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return User{}, ErrNotFound
	}
	if u, err := s.Users.Get(ctx, contact); err == nil {
		return u, nil
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	users, err := s.Users.List(ctx)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if (u.Email != "" && strings.EqualFold(u.Email, contact)) || (u.Phone != "" && u.Phone == contact) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// TestIndex returns the catalog keyed by test id.
func (s *Store) TestIndex(ctx context.Context) (map[string]Test, error) {
	tests, err := s.Tests.List(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]Test, len(tests))
	for _, t := range tests {
		idx[t.ID] = t
	}
	return idx, nil
}

// SeedTests inserts the default catalog when the tests collection is empty.
func (s *Store) SeedTests(ctx context.Context) (int, error) {
	existing, err := s.Tests.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	seed := DefaultTests()
	if err := s.Tests.InsertMany(ctx, seed); err != nil {
		return 0, err
	}
	return len(seed), nil
}

// DefaultTests is the catalog a fresh installation starts with.
func DefaultTests() []Test {
	return []Test{
		{ID: "cbc", Name: "Complete Blood Count (CBC)", Description: "Measures red cells, white cells and platelets", Price: 350, Popularity: 95},
		{ID: "fullbody", Name: "Full Body Checkup", Description: "Comprehensive panel across major organs", Price: 1999, Popularity: 90},
		{ID: "preg", Name: "Pregnancy Test (Beta hCG)", Description: "Confirms pregnancy through hCG levels", Price: 250, Popularity: 60},
		{ID: "covid", Name: "COVID-19 RT-PCR", Description: "Detects active SARS-CoV-2 infection", Price: 1200, Popularity: 55},
		{ID: "heart", Name: "Heart Health Panel", Description: "Lipids, cardiac markers and risk indicators", Price: 1400, Popularity: 70},
		{ID: "kidney", Name: "Kidney Function Test (KFT)", Description: "Creatinine, urea and electrolytes", Price: 950, Popularity: 72},
		{ID: "liver", Name: "Liver Function Test (LFT)", Description: "Enzymes, bilirubin and proteins", Price: 1100, Popularity: 74},
		{ID: "chol", Name: "Lipid Profile", Description: "Total cholesterol, HDL, LDL and triglycerides", Price: 450, Popularity: 85},
		{ID: "hba1c", Name: "HbA1c", Description: "Average blood sugar over three months", Price: 600, Popularity: 80},
		{ID: "thyroid", Name: "Thyroid Profile (T3, T4, TSH)", Description: "Thyroid hormone levels", Price: 500, Popularity: 88},
		{ID: "sugar", Name: "Blood Sugar (Fasting)", Description: "Fasting glucose", Price: 200, Popularity: 92},
		{ID: "vitd", Name: "Vitamin D (25-OH)", Description: "Vitamin D deficiency screening", Price: 900, Popularity: 78},
	}
}
