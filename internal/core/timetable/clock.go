package timetable

import (
	"fmt"
	"regexp"
	"strconv"
)

// Operating-day boundaries in minutes since midnight. The working timetable
// day begins at 02:45; any clock reading before that belongs to the next
// calendar day and is shifted forward by a full day.
const (
	DayStartMinutes = 165  // 02:45
	DayEndMinutes   = 1605 // 02:45 next day
	MinutesPerDay   = 1440
)

// clockPattern accepts HH:MM or HH:MM:SS, optionally prefixed by a spreadsheet
// date artifact such as "12/1/2024 ".
var clockPattern = regexp.MustCompile(
	`(?:\d{1,2}/\d{1,2}/\d{2,4}\s+)?([01]?\d|2[0-3]):([0-5]\d)(?::([0-5]\d))?$`,
)

// IsClock reports whether the cell text ends in a parseable clock reading.
func IsClock(s string) bool {
	return clockPattern.MatchString(s)
}

// ParseClock converts a clock reading to minutes since midnight, applying the
// operating-day wrap: readings before 02:45 are pushed into the next day.
func ParseClock(s string) (float64, error) {
	m := clockPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("not a clock value: %q", s)
	}

	hours, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	minutes := float64(hours*60 + mins)
	if m[3] != "" {
		secs, _ := strconv.Atoi(m[3])
		minutes += float64(secs) / 60
	}

	if minutes < DayStartMinutes {
		minutes += MinutesPerDay
	}
	return minutes, nil
}

// FormatMinutes renders minutes since midnight as HH:MM, folding wrapped
// next-day values back onto the 24-hour clock. Negative input renders as
// the empty placeholder.
func FormatMinutes(t float64) string {
	if t < 0 {
		return "--:--"
	}
	total := int(t + 0.5)
	return fmt.Sprintf("%02d:%02d", (total/60)%24, total%60)
}
