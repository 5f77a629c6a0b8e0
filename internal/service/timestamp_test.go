package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp_Formats(t *testing.T) {
	now := time.Date(2024, time.March, 9, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{name: "rfc3339 utc", in: "2021-10-31T03:04:05Z", want: time.Date(2021, 10, 31, 3, 4, 5, 0, time.UTC)},
		{name: "rfc3339 offset", in: "2021-10-31T03:04:05+02:00", want: time.Date(2021, 10, 31, 1, 4, 5, 0, time.UTC)},
		{name: "rfc3339 fraction", in: "2021-10-31T03:04:05.123456Z", want: time.Date(2021, 10, 31, 3, 4, 5, 123456000, time.UTC)},
		{name: "unpadded fields", in: "2021-1-5T3:4:00Z", want: time.Date(2021, 1, 5, 3, 4, 0, 0, time.UTC)},
		{name: "naive date-time", in: "2021-10-31T03:04:05", want: time.Date(2021, 10, 31, 3, 4, 5, 0, time.UTC)},
		{name: "naive fraction", in: "2021-10-31T03:04:05.5", want: time.Date(2021, 10, 31, 3, 4, 5, 500000000, time.UTC)},
		{name: "space separator", in: "2021-10-31 03:04:05", want: time.Date(2021, 10, 31, 3, 4, 5, 0, time.UTC)},
		{name: "rfc2822", in: "Sun, 31 Oct 2021 03:04:05 +0000", want: time.Date(2021, 10, 31, 3, 4, 5, 0, time.UTC)},
		{name: "rfc2822 single digit day", in: "Mon, 1 Nov 2021 03:04:05 -0100", want: time.Date(2021, 11, 1, 4, 4, 5, 0, time.UTC)},
		{name: "time only", in: "12:30:00", want: time.Date(2024, 3, 9, 12, 30, 0, 0, time.UTC)},
		{name: "time only fraction", in: "12:30:00.25", want: time.Date(2024, 3, 9, 12, 30, 0, 250000000, time.UTC)},
		{name: "iso date", in: "2021-10-31", want: time.Date(2021, 10, 31, 0, 0, 0, 0, time.UTC)},
		{name: "us date dashes", in: "10-31-2021", want: time.Date(2021, 10, 31, 0, 0, 0, 0, time.UTC)},
		{name: "us date slashes", in: "10/31/2021", want: time.Date(2021, 10, 31, 0, 0, 0, 0, time.UTC)},
		{name: "surrounding space", in: "  2021-10-31 ", want: time.Date(2021, 10, 31, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseTimestampAt(tc.in, now)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s, want %s", got, tc.want)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "foo", "2021-13-01", "31/10/2021", "yesterday", "2021-10-31T25:00:00Z"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimestamp(in)
			assert.ErrorIs(t, err, errUnrecognizedTimestamp)
		})
	}
}
