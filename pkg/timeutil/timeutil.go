// Package timeutil provides timezone-aware helpers for the reminder cycle.
// All functions take the location explicitly; the process-wide zone comes
// from APP_TIMEZONE.
package timeutil

import (
	"time"
)

// LoadLocation resolves an IANA zone name. Unknown or empty names fall back
// to UTC and ok is false.
func LoadLocation(name string) (loc *time.Location, ok bool) {
	if name == "" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// SlotStart returns the start of the fixed-length slot that contains t.
// Slots are anchored at local midnight of 1970-01-01, so a 24h interval
// flips at local midnight rather than at UTC midnight.
func SlotStart(t time.Time, interval time.Duration, loc *time.Location) time.Time {
	loc = orUTC(loc)
	if interval <= 0 {
		return t.In(loc)
	}
	anchor := time.Date(1970, time.January, 1, 0, 0, 0, 0, loc)
	elapsed := t.Sub(anchor)
	n := elapsed / interval
	if elapsed < 0 && elapsed%interval != 0 {
		n--
	}
	return anchor.Add(n * interval)
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
