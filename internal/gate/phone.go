package gate

import (
	"errors"
	"strings"
)

var (
	// ErrPhoneRequired is returned for blank input.
	ErrPhoneRequired = errors.New("phone number is required")
	// ErrInvalidPhone is returned when the input does not have 10 or 11 digits.
	ErrInvalidPhone = errors.New("phone number must have 10 or 11 digits")
)

// NormalizePhone strips every non-digit character.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone checks that raw has exactly 10 or 11 digits once
// normalized.
func ValidatePhone(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrPhoneRequired
	}
	switch len(NormalizePhone(raw)) {
	case 10, 11:
		return nil
	default:
		return ErrInvalidPhone
	}
}

// FormatPhone applies the input mask: (XX) XXXX-XXXX for up to 10 digits,
// (XX) XXXXX-XXXX for 11. Inputs too short for the mask come back as
// digits; digits past the eleventh are dropped.
func FormatPhone(raw string) string {
	digits := NormalizePhone(raw)
	if len(digits) > 11 {
		digits = digits[:11]
	}
	if len(digits) < 6 {
		return digits
	}
	mid := 6
	if len(digits) == 11 {
		mid = 7
	}
	out := "(" + digits[:2] + ") " + digits[2:mid]
	if rest := digits[mid:]; rest != "" {
		out += "-" + rest
	}
	return out
}
