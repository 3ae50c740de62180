// Package cdrtime parses and formats the fixed timestamp and duration
// formats used by the telephony feed, and holds the business calendar
// helpers shared by the aggregator and the weekly store.
package cdrtime

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the only accepted timestamp shape: YYYY/MM/DD HH:MM:SS
const TimestampLayout = "2006/01/02 15:04:05"

const (
	minYear = 2000
	maxYear = 2100
)

// ParseTimestamp parses a feed timestamp as a UTC wall-clock time.
// It returns false on any shape, range or calendar error.
func ParseTimestamp(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if len(text) != len(TimestampLayout) {
		return time.Time{}, false
	}
	if text[4] != '/' || text[7] != '/' || text[10] != ' ' || text[13] != ':' || text[16] != ':' {
		return time.Time{}, false
	}

	year, ok1 := atoiDigits(text[0:4])
	month, ok2 := atoiDigits(text[5:7])
	day, ok3 := atoiDigits(text[8:10])
	hour, ok4 := atoiDigits(text[11:13])
	minute, ok5 := atoiDigits(text[14:16])
	second, ok6 := atoiDigits(text[17:19])
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return time.Time{}, false
	}

	if year < minYear || year > maxYear ||
		month < 1 || month > 12 ||
		day < 1 || day > 31 ||
		hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes overflowing days (Feb 30 -> Mar 2)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// FormatTimestamp renders t in the feed timestamp layout
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func atoiDigits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// FormatClock renders a number of seconds as MM:SS. Minutes are not
// wrapped into hours. Non-positive and non-finite input yields "00:00".
func FormatClock(totalSeconds float64) string {
	if math.IsNaN(totalSeconds) || math.IsInf(totalSeconds, 0) || totalSeconds <= 0 {
		return "00:00"
	}
	secs := int64(math.Floor(totalSeconds))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// FormatHMS renders a non-negative number of seconds as HH:MM:SS
func FormatHMS(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", totalSeconds/3600, (totalSeconds/60)%60, totalSeconds%60)
}

// ParseDurationToSeconds parses HH:MM:SS. Shorter forms are read from the
// right (MM:SS, SS). Missing or non-numeric components count as zero.
func ParseDurationToSeconds(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}

	total := 0
	multiplier := 1
	for i := len(parts) - 1; i >= 0; i-- {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 {
			n = 0
		}
		total += n * multiplier
		multiplier *= 60
	}
	return total
}
