package datekey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Europe/Oslo", "Europe/Oslo"},
		{" America/New_York ", "America/New_York"},
		{"", "UTC"},
		{"Local", "UTC"},
		{"Mars/Olympus_Mons", "UTC"},
		{"UTC", "UTC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Canonical(tt.in), "Canonical(%q)", tt.in)
	}
}

func TestFor_UsesZoneCalendar(t *testing.T) {
	// 23:30 UTC on June 14th is already June 15th in Oslo (UTC+2 in summer)
	instant := time.Date(2024, 6, 14, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, Key("2024-06-15"), For(instant, "Europe/Oslo"))
	assert.Equal(t, Key("2024-06-14"), For(instant, "UTC"))
	assert.Equal(t, Key("2024-06-14"), For(instant, "America/Los_Angeles"))
	assert.Equal(t, Key("2024-06-14"), For(instant, "not/a-zone"))
}

func TestShift(t *testing.T) {
	assert.Equal(t, Key("2024-03-02"), Shift("2024-03-01", 1))
	assert.Equal(t, Key("2023-12-31"), Shift("2024-01-01", -1))
	assert.Equal(t, Key("2024-02-29"), Shift("2024-02-28", 1))
	assert.Equal(t, Key("2024-03-31"), Shift("2024-03-30", 1)) // DST weekend in Europe
	assert.Equal(t, Key("2024-06-15"), Shift("2024-06-15", 0))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 1, DaysBetween("2024-03-01", "2024-03-02"))
	assert.Equal(t, -1, DaysBetween("2024-03-02", "2024-03-01"))
	assert.Equal(t, 0, DaysBetween("2024-03-01", "2024-03-01"))
	assert.Equal(t, 366, DaysBetween("2024-01-01", "2025-01-01"))
}

func TestRecent(t *testing.T) {
	now := time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

	keys := Recent("UTC", 3, now)
	assert.Equal(t, []Key{"2023-12-31", "2024-01-01", "2024-01-02"}, keys)
	assert.Nil(t, Recent("UTC", 0, now))
}

func TestRange(t *testing.T) {
	assert.Equal(t, []Key{"2024-02-28", "2024-02-29", "2024-03-01"}, Range("2024-02-28", "2024-03-01"))
	assert.Equal(t, []Key{"2024-02-28"}, Range("2024-02-28", "2024-02-28"))
	assert.Nil(t, Range("2024-03-01", "2024-02-28"))
}

func TestParse(t *testing.T) {
	k, err := Parse("2024-06-15")
	require.NoError(t, err)
	assert.Equal(t, Key("2024-06-15"), k)

	for _, bad := range []string{"", "2024-6-15", "2024-13-01", "15-06-2024", "2024-06-15T00:00:00Z"} {
		_, err := Parse(bad)
		assert.Error(t, err, "Parse(%q)", bad)
	}
	assert.True(t, Key("2024-06-15").Valid())
	assert.False(t, Key("yesterday").Valid())
}

func TestBefore(t *testing.T) {
	assert.True(t, Key("2024-06-14").Before("2024-06-15"))
	assert.False(t, Key("2024-06-15").Before("2024-06-15"))
	assert.False(t, Key("2024-06-16").Before("2024-06-15"))
}
