package utils

import (
	"testing"
	"time"
)

func TestFormatTodayMatchesLayout(t *testing.T) {
	got := FormatToday()
	if _, err := time.Parse(DateLayout, got); err != nil {
		t.Errorf("FormatToday returned %q, not a valid date: %v", got, err)
	}
}

func TestFormatDateWithOffset(t *testing.T) {
	today := FormatToday()
	tomorrow := FormatDateWithOffset(1)

	parsedToday, _ := time.Parse(DateLayout, today)
	parsedTomorrow, err := time.Parse(DateLayout, tomorrow)
	if err != nil {
		t.Fatalf("FormatDateWithOffset returned invalid date %q: %v", tomorrow, err)
	}

	diff := parsedTomorrow.Sub(parsedToday)
	if diff != 24*time.Hour {
		t.Errorf("expected one day difference, got %v", diff)
	}
}

func TestFormatDateWithOffsetOrdering(t *testing.T) {
	// YYYY-MM-DD compares correctly as a plain string; date range queries
	// rely on this.
	if !(FormatDateWithOffset(-1) < FormatToday()) {
		t.Error("yesterday should sort before today")
	}
	if !(FormatToday() < FormatDateWithOffset(90)) {
		t.Error("today should sort before the upcoming horizon")
	}
}

func TestValidDate(t *testing.T) {
	if !ValidDate("2026-03-01") {
		t.Error("expected 2026-03-01 to be valid")
	}
	if ValidDate("03/01/2026") || ValidDate("not-a-date") || ValidDate("") {
		t.Error("malformed dates should be rejected")
	}
}
