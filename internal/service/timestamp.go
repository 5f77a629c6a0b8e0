package service

import (
	"errors"
	"strings"
	"time"
)

// errUnrecognizedTimestamp is returned when no supported layout matches.
var errUnrecognizedTimestamp = errors.New("unrecognized timestamp format")

// zonedLayouts carry their own zone. Go's parser tolerates unpadded month, day,
// hour, minute and second fields for the "1", "2", "15", "4" and "5" elements, and
// accepts fractional seconds after the seconds field even when the layout omits them.
var zonedLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC3339Nano,
	"2006-1-2T15:4:5Z07:00",
	"2006-1-2 15:4:5Z07:00",
}

// naiveLayouts have no zone and are read as UTC.
var naiveLayouts = []string{
	"2006-1-2T15:4:5",
	"2006-1-2 15:4:5",
}

// dateLayouts are read as midnight UTC.
var dateLayouts = []string{
	"2006-1-2",
	"1-2-2006",
	"1/2/2006",
}

// timeOnlyLayout is read as that time today, UTC.
const timeOnlyLayout = "15:4:5"

// ParseTimestamp parses a --before/--after value. It accepts RFC 2822 and
// RFC 3339 date-times, ISO 8601 date-times without a zone, a bare time of day,
// and ISO or US dates. The result is always in UTC.
func ParseTimestamp(input string) (time.Time, error) {
	return parseTimestampAt(input, time.Now())
}

// parseTimestampAt is ParseTimestamp with an explicit "now" for time-only input.
func parseTimestampAt(input string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, errUnrecognizedTimestamp
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	if t, err := time.ParseInLocation(timeOnlyLayout, s, time.UTC); err == nil {
		today := now.UTC()
		return time.Date(today.Year(), today.Month(), today.Day(),
			t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errUnrecognizedTimestamp
}
