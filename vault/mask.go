package vault

import "strings"

// maskValue redacts a secret for display. Values longer than six
// characters keep their first and last two characters; anything shorter
// is fully starred. Deterministic and irreversible. Operates on runes
// so multibyte secrets stay valid UTF-8.
func maskValue(value string) string {
	chars := []rune(value)
	if len(chars) > 6 {
		return string(chars[:2]) + strings.Repeat("*", len(chars)-4) + string(chars[len(chars)-2:])
	}
	return strings.Repeat("*", len(chars))
}
