package chat

import (
	"fmt"
	"time"
)

// TimestampLayout is the canonical message timestamp format. It is both
// the sort key (lexicographic order matches chronological order) and one
// half of the message identity key. Always UTC.
const TimestampLayout = "2006-01-02 15:04_05"

// dayLayout names a single UTC calendar day, matching raw day-file names.
const dayLayout = "2006-01-02"

// FormatTimestamp renders t in the canonical UTC format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a canonical timestamp string.
func ParseTimestamp(ts string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, ts, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", ts, err)
	}

	return t, nil
}

// TimestampFromUnix converts a server unix timestamp (seconds) to the
// canonical string. The exact server value must be used when building an
// optimistic local echo so the later server broadcast dedups against it.
func TimestampFromUnix(sec int64) string {
	return FormatTimestamp(time.Unix(sec, 0))
}

// DayOf returns the UTC calendar day ("YYYY-MM-DD") of a canonical
// timestamp, or the empty string for a malformed one.
func DayOf(ts string) string {
	if len(ts) < len(dayLayout) {
		return ""
	}

	day := ts[:len(dayLayout)]
	if _, err := time.ParseInLocation(dayLayout, day, time.UTC); err != nil {
		return ""
	}

	return day
}

// ParseDay parses a "YYYY-MM-DD" day name to midnight UTC.
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(dayLayout, day, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing day %q: %w", day, err)
	}

	return t, nil
}

// FormatDay renders the UTC calendar day of t.
func FormatDay(t time.Time) string {
	return t.UTC().Format(dayLayout)
}
