package utils

import "time"

// DayFormat is the canonical day-granularity date layout used for storage,
// rate lookups and report cells.
const DayFormat = "2006-01-02"

// ParseDay parses a date string in the canonical day layout.
func ParseDay(dateStr string) (time.Time, error) {
	return time.Parse(DayFormat, dateStr)
}

// FormatDay renders a time at day granularity.
func FormatDay(t time.Time) string {
	return t.Format(DayFormat)
}
