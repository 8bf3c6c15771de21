package reminders

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/bloodlab-platform/internal/records"
)

func TestFollowupCreatedOnceAcrossRepeatedPasses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u01")
	f.addUser(t, "u01", records.UserActive)
	f.addBooking(t, "b1", "u01", 30)

	for i := 0; i < 5; i++ {
		_, err := f.gen.Run(ctx, baseNow)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"followup:u01:b1"}, dedupKeys(t, f.events))
}

func TestGenerationRules(t *testing.T) {
	cases := []struct {
		daysAgo int
		want    []string
	}{
		{0, nil},
		{1, []string{"medicine:u01:b1:1"}},
		{7, []string{"medicine:u01:b1:7"}},
		{8, nil},
		{29, nil},
		{30, []string{"followup:u01:b1"}},
		{31, nil},
		{365, []string{"annual:u01:b1:1"}},
		{730, []string{"annual:u01:b1:2"}},
		{-3, nil},
	}
	for _, tc := range cases {
		f := newFixture(t, "u01")
		f.addUser(t, "u01", records.UserActive)
		f.addBooking(t, "b1", "u01", tc.daysAgo)

		report, err := f.gen.Run(context.Background(), baseNow)
		require.NoError(t, err)
		assert.Equal(t, len(tc.want), report.Created, "days ago %d", tc.daysAgo)
		assert.ElementsMatch(t, tc.want, dedupKeys(t, f.events), "days ago %d", tc.daysAgo)
	}
}

func TestGenerationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "u01", "u02")
	f.addUser(t, "u01", records.UserActive)
	f.addUser(t, "u02", records.UserActive)
	f.addBooking(t, "b1", "u01", 2)
	f.addBooking(t, "b2", "u01", 30)
	f.addBooking(t, "b3", "u02", 365)

	first, err := f.gen.Run(ctx, baseNow)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)
	keys := dedupKeys(t, f.events)

	second, err := f.gen.Run(ctx, baseNow)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 3, second.Skipped)
	assert.ElementsMatch(t, keys, dedupKeys(t, f.events))
}

func TestGenerationSkipsUsersWithoutLiveSessionOrInactive(t *testing.T) {
	f := newFixture(t, "u02", "u03", "u09")
	f.addUser(t, "u01", records.UserActive)
	f.addUser(t, "u02", records.UserSuspended)
	f.addUser(t, "u03", records.UserActive)
	f.addBooking(t, "b1", "u01", 3)
	f.addBooking(t, "b2", "u02", 3)
	f.addBooking(t, "b3", "u03", 3)

	report, err := f.gen.Run(context.Background(), baseNow)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Users)
	assert.Equal(t, []string{"medicine:u03:b3:3"}, dedupKeys(t, f.events))
}

func TestGeneratedEventCarriesBookingDetails(t *testing.T) {
	f := newFixture(t, "u01")
	f.addUser(t, "u01", records.UserActive)
	f.addBooking(t, "b1", "u01", 4)

	_, err := f.gen.Run(context.Background(), baseNow)
	require.NoError(t, err)
	events, err := f.events.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, KindMedicine, ev.Kind)
	assert.Equal(t, "u01", ev.UserID)
	assert.Equal(t, "b1", ev.BookingID)
	assert.Equal(t, "Thyroid Profile", ev.TestName)
	assert.Equal(t, "2026-10-11", ev.TestDate)
	assert.False(t, ev.Sent)
	assert.True(t, ev.ScheduledAt.Equal(baseNow))
}
