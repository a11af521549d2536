package util

import "strings"

// Substitute replaces literal {name} placeholders in text with the values in
// vars. Placeholders without a binding are left untouched so partially
// composed templates stay inspectable. No escaping or nesting is supported.
// This lives in internal to avoid committing to public API stability
// prematurely.
func Substitute(text string, vars map[string]string) string {
	if !strings.Contains(text, "{") { // fast path: no placeholders
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
