package crawler

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced across package boundaries.
var (
	// ErrJobConflict is returned by Start when a job is already active.
	ErrJobConflict = errors.New("a crawl job is already active")
	// ErrAuthFailed signals a provider authentication failure; fatal for the job.
	ErrAuthFailed = errors.New("provider authentication failed")
	// ErrQuotaExceeded signals provider quota exhaustion; fatal for the job.
	ErrQuotaExceeded = errors.New("provider quota exceeded")
	// ErrDuplicateURL is returned by stores on a unique-URL violation.
	ErrDuplicateURL = errors.New("resource url already exists")
	// ErrNotFound is returned by stores when a resource does not exist.
	ErrNotFound = errors.New("resource not found")
)

// StateError reports a rejected download status transition. Stored state is
// left unchanged when it is returned.
type StateError struct {
	ResourceID string
	From       DownloadStatus
	To         DownloadStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for resource %s", e.From, e.To, e.ResourceID)
}

// DownloadError wraps a per-item transfer failure. It is isolated to one
// resource and never aborts the job.
type DownloadError struct {
	URL   string
	Cause error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Cause)
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err should abort the whole job rather than a
// single page attempt or item.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrQuotaExceeded)
}
