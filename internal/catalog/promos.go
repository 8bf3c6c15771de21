package catalog

import (
	"fmt"
	"strings"
)

// PromoKind says how a promo's value is interpreted.
type PromoKind string

const (
	PromoPercent PromoKind = "percent"
	PromoFlat    PromoKind = "flat"
)

// Promo is one entry of the static promo table.
type Promo struct {
	Code  string
	Kind  PromoKind
	Value int64
}

// Discount returns the amount the promo takes off subtotal. Percent
// discounts round half away from zero to the nearest rupee.
func (p Promo) Discount(subtotal int64) int64 {
	switch p.Kind {
	case PromoPercent:
		return (subtotal*p.Value + 50) / 100
	case PromoFlat:
		return p.Value
	}
	return 0
}

// Label renders the confirmation suffix, e.g. "10% off" or "₹50 off".
func (p Promo) Label() string {
	if p.Kind == PromoPercent {
		return fmt.Sprintf("%d%% off", p.Value)
	}
	return FormatINR(p.Value) + " off"
}

// PromoTable maps normalized codes to promos.
type PromoTable map[string]Promo

// DefaultPromos is the promo table shipped with the lab.
func DefaultPromos() PromoTable {
	return PromoTable{
		"WELCOME10": {Code: "WELCOME10", Kind: PromoPercent, Value: 10},
		"FLAT50":    {Code: "FLAT50", Kind: PromoFlat, Value: 50},
	}
}

// NormalizeCode trims and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup finds a promo by user-entered code.
func (t PromoTable) Lookup(code string) (Promo, bool) {
	p, ok := t[NormalizeCode(code)]
	return p, ok
}
