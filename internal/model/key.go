package model

import (
	"fmt"
	"time"
)

// KeyDateLayout is the layout of the date prefix shared by question and fact keys.
const KeyDateLayout = "2006-01-02"

// KeyForDate returns the canonical key for the calendar day of t in loc.
func KeyForDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(KeyDateLayout)
}

// KeyDate parses the ISO date prefix of a question or fact key.
func KeyDate(key string) (time.Time, error) {
	if len(key) < len(KeyDateLayout) {
		return time.Time{}, fmt.Errorf("key %q has no date prefix", key)
	}
	d, err := time.Parse(KeyDateLayout, key[:len(KeyDateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("key %q has no date prefix: %w", key, err)
	}
	return d, nil
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
