package core

import "time"

const (
	// Version is the payorch server version.
	Version = "0.1.0"

	// TimeFormat is ISO 8601 UTC with millisecond precision, used for all
	// persisted timestamps.
	TimeFormat = "2006-01-02T15:04:05.000Z"
)

// FormatTime formats a time as ISO 8601 UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// NowFormatted returns the current time formatted as ISO 8601 UTC.
func NowFormatted() string {
	return FormatTime(time.Now())
}

// ParseTime parses a timestamp previously produced by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeFormat, s)
}
