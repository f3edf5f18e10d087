// Package timezone resolves configured timezone names into time.Locations
// and provides day-boundary helpers for date bucketing.
package timezone

import (
	"fmt"
	"strings"
	"time"
)

// Default is the timezone assumed when nothing is configured.
const Default = "UTC"

// Resolve maps a timezone name to a concrete location. An empty name means
// UTC; "local" (case-insensitive) selects the system timezone. Anything
// else must be a valid IANA zone name.
func Resolve(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)

	switch strings.ToLower(name) {
	case "", "utc":
		return time.UTC, nil
	case "local":
		return time.Local, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// NowIn returns the current time in the given location.
func NowIn(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
