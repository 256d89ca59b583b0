// Package emergency flags message bodies that call for urgent care.
package emergency

import "strings"

// Triggers are matched as lower-cased substrings. A single hit flags the
// whole message; negations such as "não é uma emergência" still match.
var Triggers = []string{
	"⚠️",
	"emergência",
	"imediatamente",
	"samu",
}

// IsEmergency reports whether text contains any trigger, ignoring case.
func IsEmergency(text string) bool {
	if text == "" {
		return false
	}
	normalized := strings.ToLower(text)
	for _, trigger := range Triggers {
		if strings.Contains(normalized, trigger) {
			return true
		}
	}
	return false
}
