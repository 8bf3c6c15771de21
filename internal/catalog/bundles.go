package catalog

import "strings"

// Bundles maps a quick-book purpose to the tests it adds to a cart.
var Bundles = map[string][]string{
	"general":  {"cbc", "sugar", "chol"},
	"diabetes": {"sugar", "hba1c"},
	"heart":    {"heart", "chol"},
	"thyroid":  {"thyroid"},
	"fullbody": {"fullbody"},
	"women":    {"cbc", "thyroid", "vitd"},
}

// Bundle returns the test ids for a purpose.
func Bundle(purpose string) ([]string, bool) {
	ids, ok := Bundles[strings.ToLower(strings.TrimSpace(purpose))]
	return ids, ok
}
