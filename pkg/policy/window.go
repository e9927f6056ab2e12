package policy

import (
	"time"
)

// WorkingWindowConfig defines the working window in which TIMED_APPROVAL
// commands auto-execute rather than reject.
type WorkingWindowConfig struct {
	// Timezone for the window (e.g. "America/New_York", "UTC",
	// "Local"). Default: "Local".
	Timezone string `yaml:"timezone"`

	// DaysOfWeek defines the working days (1 = Monday, 7 = Sunday).
	// Empty means all days.
	DaysOfWeek []int `yaml:"days_of_week"`

	// StartHour is the start of the window (0-23), inclusive.
	StartHour int `yaml:"start_hour"`

	// EndHour is the end of the window (0-23), exclusive: a command at
	// exactly EndHour:00 is outside the window.
	EndHour int `yaml:"end_hour"`
}

// DefaultWorkingWindowConfig returns the default window: Mon-Fri,
// 09:00-18:00 local time.
func DefaultWorkingWindowConfig() *WorkingWindowConfig {
	return &WorkingWindowConfig{
		Timezone:   "Local",
		DaysOfWeek: []int{1, 2, 3, 4, 5}, // Monday-Friday
		StartHour:  9,
		EndHour:    18,
	}
}

// IsWithin checks whether the given instant falls inside the working
// window.
func (c *WorkingWindowConfig) IsWithin(t time.Time) bool {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		// Fall back to local time if the timezone cannot be loaded.
		loc = time.Local
	}
	localTime := t.In(loc)

	if len(c.DaysOfWeek) > 0 {
		dayOfWeek := int(localTime.Weekday())
		if dayOfWeek == 0 {
			dayOfWeek = 7 // Sunday is 7, not 0
		}

		isWorkDay := false
		for _, day := range c.DaysOfWeek {
			if dayOfWeek == day {
				isWorkDay = true
				break
			}
		}
		if !isWorkDay {
			return false
		}
	}

	hour := localTime.Hour()
	return hour >= c.StartHour && hour < c.EndHour
}
