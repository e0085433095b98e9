package messaging

import "strings"

// NormalizeUser reduces a phone-like conversation address to its digits, the
// form chat transports use for the user part of an address. Values that
// already carry a server part ("123@g.us") are returned trimmed but unchanged.
func NormalizeUser(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || strings.Contains(value, "@") {
		return value
	}
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
