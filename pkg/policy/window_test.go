package policy

import (
	"testing"
	"time"
)

func TestWorkingWindowIsWithin(t *testing.T) {
	window := &WorkingWindowConfig{
		Timezone:   "UTC",
		DaysOfWeek: []int{1, 2, 3, 4, 5},
		StartHour:  9,
		EndHour:    18,
	}

	tests := []struct {
		name   string
		at     time.Time
		within bool
	}{
		{
			name:   "friday mid-afternoon",
			at:     time.Date(2026, 1, 2, 14, 0, 0, 0, time.UTC),
			within: true,
		},
		{
			name:   "start hour is inclusive",
			at:     time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
			within: true,
		},
		{
			name:   "last minute before close",
			at:     time.Date(2026, 1, 2, 17, 59, 59, 0, time.UTC),
			within: true,
		},
		{
			name:   "end hour is exclusive",
			at:     time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC),
			within: false,
		},
		{
			name:   "before opening",
			at:     time.Date(2026, 1, 2, 8, 59, 59, 0, time.UTC),
			within: false,
		},
		{
			name:   "saturday inside hours",
			at:     time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC),
			within: false,
		},
		{
			name:   "sunday inside hours",
			at:     time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC),
			within: false,
		},
		{
			name:   "monday morning",
			at:     time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC),
			within: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := window.IsWithin(tt.at); got != tt.within {
				t.Errorf("IsWithin(%s) = %v, want %v", tt.at, got, tt.within)
			}
		})
	}
}

func TestWorkingWindowEmptyDaysMeansAllDays(t *testing.T) {
	window := &WorkingWindowConfig{
		Timezone:  "UTC",
		StartHour: 9,
		EndHour:   18,
	}

	// Sunday inside hours.
	at := time.Date(2026, 1, 4, 10, 0, 0, 0, time.UTC)
	if !window.IsWithin(at) {
		t.Error("expected Sunday to be within when no days are configured")
	}
}

func TestWorkingWindowTimezoneConversion(t *testing.T) {
	window := &WorkingWindowConfig{
		Timezone:   "America/New_York",
		DaysOfWeek: []int{1, 2, 3, 4, 5},
		StartHour:  9,
		EndHour:    18,
	}

	// 20:00 UTC on a Friday is 15:00 in New York (EST): within.
	at := time.Date(2026, 1, 2, 20, 0, 0, 0, time.UTC)
	if !window.IsWithin(at) {
		t.Error("expected 20:00 UTC Friday to be within the New York window")
	}

	// 02:00 UTC Saturday is 21:00 Friday in New York: outside hours.
	at = time.Date(2026, 1, 3, 2, 0, 0, 0, time.UTC)
	if window.IsWithin(at) {
		t.Error("expected 02:00 UTC Saturday to be outside the New York window")
	}
}

func TestDefaultWorkingWindowConfig(t *testing.T) {
	window := DefaultWorkingWindowConfig()

	if window.StartHour != 9 || window.EndHour != 18 {
		t.Errorf("unexpected default hours: %d-%d", window.StartHour, window.EndHour)
	}
	if len(window.DaysOfWeek) != 5 {
		t.Errorf("expected Monday-Friday, got %v", window.DaysOfWeek)
	}
	if window.Timezone != "Local" {
		t.Errorf("expected Local timezone, got %s", window.Timezone)
	}
}
