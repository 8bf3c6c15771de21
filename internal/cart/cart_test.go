package cart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/bloodlab-platform/internal/catalog"
	"github.com/wolfman30/bloodlab-platform/internal/records"
)

func testCatalog() map[string]records.Test {
	idx := make(map[string]records.Test)
	for _, t := range records.DefaultTests() {
		idx[t.ID] = t
	}
	return idx
}

func newScenarioCart(t *testing.T) *Cart {
	t.Helper()
	c := New(testCatalog(), catalog.DefaultPromos())
	c.AddTest("cbc")
	c.AddTest("fullbody")
	return c
}

func TestSummaryScenarios(t *testing.T) {
	tests := []struct {
		name     string
		promo    string
		discount int64
		total    int64
	}{
		{"no promo", "", 0, 2349},
		{"percent promo", "WELCOME10", 235, 2114},
		{"flat promo", "FLAT50", 50, 2299},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newScenarioCart(t)
			if tt.promo != "" {
				_, err := c.ApplyPromo(tt.promo)
				require.NoError(t, err)
			}
			s := c.Summary()
			assert.Equal(t, int64(2349), s.Subtotal)
			assert.Equal(t, tt.discount, s.Discount)
			assert.Equal(t, tt.total, s.Total)
		})
	}
}

func TestApplyPromoMessages(t *testing.T) {
	c := newScenarioCart(t)

	msg, err := c.ApplyPromo("  welcome10 ")
	require.NoError(t, err)
	assert.Equal(t, "Applied: WELCOME10 (10% off)", msg)

	msg, err = c.ApplyPromo("flat50")
	require.NoError(t, err)
	assert.Equal(t, "Applied: FLAT50 (₹50 off)", msg)

	_, err = c.ApplyPromo("   ")
	var promoErr *PromoError
	require.True(t, errors.As(err, &promoErr))
	assert.Equal(t, MsgEnterPromo, promoErr.Message)
	assert.Zero(t, c.Summary().Discount)

	_, err = c.ApplyPromo("FLAT50")
	require.NoError(t, err)
	_, err = c.ApplyPromo("HALFOFF")
	require.True(t, errors.As(err, &promoErr))
	assert.Equal(t, MsgInvalidPromo, promoErr.Message)
	assert.Zero(t, c.Summary().Discount, "unknown code must clear the previous promo")
	_, ok := c.Promo()
	assert.False(t, ok)
}

func TestSummaryIsIdempotent(t *testing.T) {
	c := newScenarioCart(t)
	_, _ = c.ApplyPromo("WELCOME10")
	assert.Equal(t, c.Summary(), c.Summary())
}

func TestTotalNeverNegative(t *testing.T) {
	c := New(testCatalog(), catalog.DefaultPromos())
	_, err := c.ApplyPromo("FLAT50")
	require.NoError(t, err)
	s := c.Summary()
	assert.Equal(t, int64(0), s.Subtotal)
	assert.Equal(t, int64(0), s.Total)

	c.AddTest("sugar")
	c.ChangeQuantity("sugar", 4)
	assert.GreaterOrEqual(t, c.Summary().Total, int64(0))
}

func TestQuantityChanges(t *testing.T) {
	c := New(testCatalog(), nil)
	c.AddTest("cbc")
	c.AddTest("cbc")
	assert.Equal(t, 2, c.Quantity("cbc"))

	c.ChangeQuantity("cbc", -c.Quantity("cbc"))
	assert.Zero(t, c.Len())

	c.ChangeQuantity("liver", 2)
	assert.Equal(t, int64(2200), c.Summary().Subtotal)

	c.RemoveTest("liver")
	c.RemoveTest("liver")
	assert.Zero(t, c.Len())
}

func TestUnknownTestsAreIgnoredInPricing(t *testing.T) {
	c := New(testCatalog(), nil)
	c.AddTest("cbc")
	c.AddTest("retired-test")
	assert.Equal(t, 2, c.Len())
	assert.Len(t, c.PricedLines(), 1)
	assert.Equal(t, int64(350), c.Summary().Subtotal)
}

func TestClearDropsPromo(t *testing.T) {
	c := newScenarioCart(t)
	_, _ = c.ApplyPromo("WELCOME10")
	c.Clear()
	assert.Zero(t, c.Len())
	assert.Equal(t, Summary{}, c.Summary())
}

func TestStateRoundTripKeepsPromo(t *testing.T) {
	c := newScenarioCart(t)
	_, _ = c.ApplyPromo("FLAT50")
	restored := Restore(c.State(), testCatalog(), catalog.DefaultPromos())
	assert.Equal(t, c.Summary(), restored.Summary())
}

func TestAddBundle(t *testing.T) {
	c := New(testCatalog(), nil)
	require.NoError(t, c.AddBundle("diabetes"))
	c.AddTest("sugar")
	assert.Equal(t, 2, c.Quantity("sugar"))
	assert.Equal(t, 1, c.Quantity("hba1c"))
	assert.ErrorIs(t, c.AddBundle("astrology"), ErrUnknownBundle)
}
