package utils

import (
	"time"
)

// DateLayout is the plain calendar date format used for due dates and
// deadlines throughout the local cache.
const DateLayout = "2006-01-02"

// FormatToday returns today's date in the local timezone as YYYY-MM-DD.
func FormatToday() string {
	return time.Now().Format(DateLayout)
}

// FormatDateWithOffset returns today plus the given number of days as
// YYYY-MM-DD. Negative offsets give past dates.
func FormatDateWithOffset(days int) string {
	return time.Now().AddDate(0, 0, days).Format(DateLayout)
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
