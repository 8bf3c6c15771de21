package cart

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wolfman30/bloodlab-platform/internal/catalog"
	"github.com/wolfman30/bloodlab-platform/internal/records"
)

// Promo messages shown to the user.
const (
	MsgEnterPromo   = "Enter a promo code"
	MsgInvalidPromo = "Invalid promo code"
)

// ErrUnknownBundle is returned by AddBundle for an unrecognized purpose.
var ErrUnknownBundle = errors.New("cart: unknown bundle")

// PromoError is returned when a promo code is empty or not in the table.
// The cart's promo is cleared in both cases.
type PromoError struct {
	Code    string
	Message string
}

func (e *PromoError) Error() string { return e.Message }

// Line is one test and its quantity.
type Line struct {
	TestID   string `json:"testId"`
	Quantity int    `json:"quantity"`
}

// PricedLine is a line whose test resolved against the catalog.
type PricedLine struct {
	TestID   string `json:"testId"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Amount   int64  `json:"amount"`
}

// Summary is the priced view of a cart.
type Summary struct {
	Subtotal  int64  `json:"subtotal"`
	Discount  int64  `json:"discount"`
	Total     int64  `json:"total"`
	PromoCode string `json:"promoCode,omitempty"`
}

// State is the serializable form of a cart.
type State struct {
	Lines map[string]int `json:"lines"`
	Promo string         `json:"promo,omitempty"`
}

// Cart holds one session's selected tests and applied promo. A Cart is not
// safe for concurrent use; each session owns its own value.
type Cart struct {
	tests  map[string]records.Test
	promos catalog.PromoTable
	lines  map[string]int
	promo  *catalog.Promo
}

// New returns an empty cart pricing against tests and promos.
func New(tests map[string]records.Test, promos catalog.PromoTable) *Cart {
	if promos == nil {
		promos = catalog.DefaultPromos()
	}
	return &Cart{tests: tests, promos: promos, lines: make(map[string]int)}
}

// Restore rebuilds a cart from saved state. Promos that no longer exist are dropped.
func Restore(state State, tests map[string]records.Test, promos catalog.PromoTable) *Cart {
	c := New(tests, promos)
	for id, qty := range state.Lines {
		if qty > 0 {
			c.lines[id] = qty
		}
	}
	if p, ok := c.promos.Lookup(state.Promo); ok {
		c.promo = &p
	}
	return c
}

// State snapshots the cart for persistence.
func (c *Cart) State() State {
	lines := make(map[string]int, len(c.lines))
	for id, qty := range c.lines {
		lines[id] = qty
	}
	st := State{Lines: lines}
	if c.promo != nil {
		st.Promo = c.promo.Code
	}
	return st
}

// AddTest increments the quantity of testID, inserting it at 1. Unknown ids
// are kept and simply not priced.
func (c *Cart) AddTest(testID string) {
	c.lines[testID]++
}

// AddBundle adds every test of a quick-book purpose.
func (c *Cart) AddBundle(purpose string) error {
	ids, ok := catalog.Bundle(purpose)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBundle, purpose)
	}
	for _, id := range ids {
		c.AddTest(id)
	}
	return nil
}

// ChangeQuantity adjusts a line by delta, removing it when the result is not positive.
func (c *Cart) ChangeQuantity(testID string, delta int) {
	qty := c.lines[testID] + delta
	if qty <= 0 {
		delete(c.lines, testID)
		return
	}
	c.lines[testID] = qty
}

// RemoveTest deletes a line.
func (c *Cart) RemoveTest(testID string) {
	delete(c.lines, testID)
}

// Clear empties the cart and drops the promo.
func (c *Cart) Clear() {
	c.lines = make(map[string]int)
	c.promo = nil
}

// ApplyPromo looks code up after trimming and upper-casing it. On success it
// returns the confirmation message; otherwise the promo is cleared and a
// *PromoError carries the message to show.
func (c *Cart) ApplyPromo(code string) (string, error) {
	normalized := catalog.NormalizeCode(code)
	if normalized == "" {
		c.promo = nil
		return "", &PromoError{Message: MsgEnterPromo}
	}
	p, ok := c.promos.Lookup(normalized)
	if !ok {
		c.promo = nil
		return "", &PromoError{Code: normalized, Message: MsgInvalidPromo}
	}
	c.promo = &p
	return fmt.Sprintf("Applied: %s (%s)", p.Code, p.Label()), nil
}

// Promo returns the applied promo, if any.
func (c *Cart) Promo() (catalog.Promo, bool) {
	if c.promo == nil {
		return catalog.Promo{}, false
	}
	return *c.promo, true
}

// Len is the number of lines, priced or not.
func (c *Cart) Len() int { return len(c.lines) }

// Quantity returns the quantity held for testID.
func (c *Cart) Quantity(testID string) int { return c.lines[testID] }

// Lines returns every line ordered by test id.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.lines))
	for id, qty := range c.lines {
		out = append(out, Line{TestID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestID < out[j].TestID })
	return out
}

// PricedLines returns the lines that resolve to a catalog test, ordered by test id.
func (c *Cart) PricedLines() []PricedLine {
	var out []PricedLine
	for _, line := range c.Lines() {
		t, ok := c.tests[line.TestID]
		if !ok {
			continue
		}
		out = append(out, PricedLine{
			TestID:   t.ID,
			Name:     t.Name,
			Price:    t.Price,
			Quantity: line.Quantity,
			Amount:   t.Price * int64(line.Quantity),
		})
	}
	return out
}

// Summary prices the cart. It has no side effects.
func (c *Cart) Summary() Summary {
	var s Summary
	for _, line := range c.PricedLines() {
		s.Subtotal += line.Amount
	}
	if c.promo != nil {
		s.Discount = c.promo.Discount(s.Subtotal)
		s.PromoCode = c.promo.Code
	}
	s.Total = s.Subtotal - s.Discount
	if s.Total < 0 {
		s.Total = 0
	}
	return s
}
