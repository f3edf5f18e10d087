package sync

// SyncError carries an HTTP-style status so callers can tell bad input
// (400) from network trouble (503) from an actual Toggl rejection, which
// keeps its own status and body.
type SyncError struct {
	StatusCode   int
	ResponseText string
	Message      string
}

// Error implements the error interface
func (e *SyncError) Error() string {
	return e.Message
}
