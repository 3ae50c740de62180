package cdrtime

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the day key used by the persisted daily tallies
const DateLayout = "2006-01-02"

// WallClock re-labels t's local wall-clock reading in loc as UTC, so that it
// compares directly with timestamps returned by ParseTimestamp.
func WallClock(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// DayKey returns the YYYY-MM-DD key of t
func DayKey(t time.Time) string {
	return t.Format(DateLayout)
}

// IsBusinessDay reports whether t falls on Monday through Friday
func IsBusinessDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// WeekNumber returns the day-of-year based week number of t: weeks start on
// Sunday and week 1 is the one holding January 1st.
func WeekNumber(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	dayOfYear := t.YearDay() - 1
	return int(math.Ceil(float64(dayOfYear+int(jan1.Weekday())+1) / 7))
}

// WeekKey returns the sortable week identifier of t, e.g. 2025-W09
func WeekKey(t time.Time) string {
	return fmt.Sprintf("%04d-W%02d", t.Year(), WeekNumber(t))
}

// WeekStart returns midnight of the Sunday opening t's calendar week
func WeekStart(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// SameWeek reports whether a and b fall in the same calendar week.
// Unlike WeekKey it is not split by the year boundary.
func SameWeek(a, b time.Time) bool {
	return WeekStart(a).Equal(WeekStart(b.In(a.Location())))
}

// MinuteOfDay returns the number of minutes elapsed since midnight
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseClock parses an HH:MM label into minutes since midnight
func ParseClock(label string) (int, bool) {
	if len(label) != 5 || label[2] != ':' {
		return 0, false
	}
	h, ok1 := atoiDigits(label[:2])
	m, ok2 := atoiDigits(label[3:])
	if !ok1 || !ok2 || h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// FormatClockLabel renders minutes since midnight as HH:MM
func FormatClockLabel(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
