package sanitizer

import "strings"

// NormalizeTimeLabel trims a time-of-day label and zero-pads a single digit
// hour, so "9:00" becomes "09:00". Anything else is returned trimmed and left
// for the validator.
func NormalizeTimeLabel(label string) string {
	label = strings.TrimSpace(label)
	if len(label) == 4 && label[1] == ':' {
		return "0" + label
	}
	return label
}

// NormalizeDate trims a calendar date string.
func NormalizeDate(date string) string {
	return strings.TrimSpace(date)
}
