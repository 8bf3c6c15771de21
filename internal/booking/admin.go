package booking

import (
	"context"
	"fmt"
	"sort"

	"github.com/wolfman30/bloodlab-platform/internal/records"
)

// List returns every booking, newest first.
func (s *Service) List(ctx context.Context) ([]records.Booking, error) {
	all, err := s.store.Bookings.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

// ListForUser returns one user's bookings, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]records.Booking, error) {
	return s.store.BookingsForUser(ctx, userID)
}

// Update applies patch to a booking. Unknown statuses are rejected.
func (s *Service) Update(ctx context.Context, id string, patch records.BookingPatch) (records.Booking, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return records.Booking{}, invalid("status", fmt.Sprintf("Unknown status %q", *patch.Status))
	}
	updated, err := s.store.Bookings.Update(ctx, id, func(b *records.Booking) error {
		patch.Apply(b)
		return nil
	})
	if err != nil {
		return records.Booking{}, err
	}
	s.logger.Info("booking updated", "booking_id", id, "status", updated.Status)
	return updated, nil
}

// Delete removes a booking.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Bookings.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("booking deleted", "booking_id", id)
	return nil
}
