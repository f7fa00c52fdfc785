package command

import "strings"

// ParseLine splits a raw input line into tokens on ASCII whitespace.
// There is no quoting; an SSID with spaces cannot be expressed.
func ParseLine(line string) []string {
	return strings.Fields(line)
}

// parseDigits parses a non-empty all-digit string. Anything else,
// including signs and decimal points, is rejected.
func parseDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
