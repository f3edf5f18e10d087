package anki

import "time"

// ReviewSession summarises one local day of card reviews
type ReviewSession struct {
	// StartTime is the first review of the day, or the current time in the
	// requested timezone when the day has no reviews
	StartTime time.Time

	// EndTime is the last review of the day, nil when the day has none
	EndTime *time.Time

	// DurationSeconds is the total time spent reviewing today
	DurationSeconds int64

	// SessionCount is the number of review events today
	SessionCount int64
}

// Empty reports whether the day has no syncable review time. A session is
// either fully populated or fully empty; zero duration always comes with a
// zero count and no end time.
func (s ReviewSession) Empty() bool {
	return s.DurationSeconds == 0
}
