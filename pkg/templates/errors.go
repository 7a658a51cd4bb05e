package templates

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch indicates the remote index or a template file could not be retrieved or parsed.
	ErrFetch = errors.New("template fetch failed")

	// ErrTemplateNotFound indicates a template id absent from the index even after a re-sync.
	ErrTemplateNotFound = errors.New("template not found")
)

// FetchError wraps a remote retrieval failure with the operation and location involved.
type FetchError struct {
	Op  string // Operation being performed (e.g., "sync_index", "fetch_assets")
	URL string // Remote location, if known
	Err error  // Underlying error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes every FetchError match ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch || errors.Is(e.Err, target)
}

// StatusError reports a non-2xx response from a remote source.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// IsFetchError checks if an error is a remote retrieval failure.
func IsFetchError(err error) bool {
	return errors.Is(err, ErrFetch)
}

// IsTemplateNotFound checks if an error indicates an unknown template.
func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}
