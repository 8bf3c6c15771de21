package catalog

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders a whole-rupee amount with the rupee sign and Indian
// digit grouping.
func FormatINR(amount int64) string {
	if amount < 0 {
		return "-₹" + inrPrinter.Sprintf("%d", -amount)
	}
	return "₹" + inrPrinter.Sprintf("%d", amount)
}
