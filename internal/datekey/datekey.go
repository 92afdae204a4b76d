// Package datekey converts instants to calendar-day keys ("YYYY-MM-DD") in a
// user's IANA time zone. Every aggregation in learnstats is keyed on these
// values; no other package formats a day key itself.
package datekey

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for minimal container images
)

// Layout is the wire format of a Key
const Layout = "2006-01-02"

// DefaultZone is the zone used whenever a supplied zone cannot be loaded
const DefaultZone = "UTC"

// Key is a calendar day. It only has meaning together with the zone used to
// derive it.
type Key string

// String implements fmt.Stringer
func (k Key) String() string {
	return string(k)
}

// Canonical validates an IANA zone name. Empty, host-relative ("Local") or
// unknown names fall back to UTC; it never fails.
func Canonical(tz string) string {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.EqualFold(tz, "local") {
		return DefaultZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return DefaultZone
	}
	return loc.String()
}

// Location returns the location for tz after canonicalisation
func Location(tz string) *time.Location {
	loc, err := time.LoadLocation(Canonical(tz))
	if err != nil {
		return time.UTC
	}
	return loc
}

// For returns the calendar day of t as seen from tz
func For(t time.Time, tz string) Key {
	return Key(t.In(Location(tz)).Format(Layout))
}

// Today is For(now, tz); named separately so call sites read naturally
func Today(tz string, now time.Time) Key {
	return For(now, tz)
}

// Parse validates s as a strict YYYY-MM-DD key
func Parse(s string) (Key, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date key %q: %w", s, err)
	}
	// time.Parse accepts some non-padded forms; require the canonical one
	if t.Format(Layout) != s {
		return "", fmt.Errorf("invalid date key %q: not zero padded", s)
	}
	return Key(s), nil
}

// Valid reports whether k is a well formed key
func (k Key) Valid() bool {
	_, err := Parse(string(k))
	return err == nil
}

// midnight interprets k as UTC midnight. Malformed keys yield the zero time.
func (k Key) midnight() time.Time {
	t, err := time.Parse(Layout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Shift adds days (negative to go back) using calendar arithmetic on the key
// itself, independent of any zone or DST rule.
func Shift(k Key, days int) Key {
	return Key(k.midnight().AddDate(0, 0, days).Format(Layout))
}

// DaysBetween returns b - a in whole days
func DaysBetween(a, b Key) int {
	return int(b.midnight().Sub(a.midnight()).Hours() / 24)
}

// Recent returns the n most recent keys ending with today in tz, ascending
func Recent(tz string, n int, now time.Time) []Key {
	if n <= 0 {
		return nil
	}
	today := Today(tz, now)
	keys := make([]Key, n)
	for i := 0; i < n; i++ {
		keys[i] = Shift(today, i-(n-1))
	}
	return keys
}

// Range returns every key from from to to inclusive, ascending. It returns
// nil when from is after to.
func Range(from, to Key) []Key {
	n := DaysBetween(from, to)
	if n < 0 {
		return nil
	}
	keys := make([]Key, 0, n+1)
	for i := 0; i <= n; i++ {
		keys = append(keys, Shift(from, i))
	}
	return keys
}

// Before reports whether k is an earlier day than other
func (k Key) Before(other Key) bool {
	return DaysBetween(k, other) > 0
}
