package phone

import (
	"errors"
	"strings"
)

const CountryCode = "55"

var ErrInvalidPhone = errors.New("invalid phone number")

// Normalize converts a raw phone string into the digits-only international
// form used for every send ("55" + area code + subscriber number).
func Normalize(raw string) (string, error) {
	digits := stripNonDigits(raw)

	if strings.HasPrefix(digits, CountryCode) {
		if n := len(digits); n == 13 || n == 14 {
			return digits, nil
		}
		return "", ErrInvalidPhone
	}

	digits = strings.TrimPrefix(digits, "0")

	if n := len(digits); n == 10 || n == 11 {
		return CountryCode + digits, nil
	}
	return "", ErrInvalidPhone
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
