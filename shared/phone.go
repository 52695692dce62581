package shared

import "strings"

// FormatPhoneNumber strips everything except digits and a leading plus,
// producing the canonical +<digits> form WhatsApp expects.
func FormatPhoneNumber(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned
}
