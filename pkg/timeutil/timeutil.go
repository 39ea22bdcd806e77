// Package timeutil provides timezone utilities for the academy's local time (Asia/Seoul, UTC+9).
// All period boundaries are wall-clock minutes in this zone.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SeoulTZ is the Korea Standard Time zone (UTC+9, no DST).
var SeoulTZ = time.FixedZone("Asia/Seoul", 9*60*60)

// MinutesPerDay is the number of wall-clock minutes in a day.
const MinutesPerDay = 24 * 60

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the standard time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
)

// Now returns the current time in the academy timezone.
func Now() time.Time {
	return time.Now().In(SeoulTZ)
}

// LoadLocation resolves a timezone name, falling back to SeoulTZ when the
// tz database is unavailable or the name is empty.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return SeoulTZ
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return SeoulTZ
	}
	return loc
}

// MinuteOfDay returns minutes since local midnight of t in loc (0..1439).
func MinuteOfDay(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = SeoulTZ
	}
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

// FormatClock formats a minute-of-day as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseClock parses "HH:MM" into a minute-of-day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// AtMinute returns the instant at the given minute-of-day on t's local date in loc.
func AtMinute(t time.Time, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = SeoulTZ
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), minute/60, minute%60, 0, 0, loc)
}

// IsSameDay reports whether two instants fall on the same local date in loc.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = SeoulTZ
	}
	y1, m1, d1 := t1.In(loc).Date()
	y2, m2, d2 := t2.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// FormatDuration renders a held-for duration compactly, e.g. "1h25m".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return "0m"
	}
	d = d.Truncate(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}
