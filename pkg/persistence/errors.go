// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrReportNotFound indicates a report was not found by the given identifier.
	ErrReportNotFound = errors.New("report not found")

	// ErrReportAlreadyExists indicates a report with the same identifier already exists.
	ErrReportAlreadyExists = errors.New("report already exists")

	// ErrInvalidReportID indicates an identifier unusable as a storage key.
	ErrInvalidReportID = errors.New("invalid report id")
)

// ReportError wraps report-related errors with additional context.
type ReportError struct {
	Op       string // Operation being performed (e.g., "ByID", "Save")
	ReportID string // Report ID or hash ID if applicable
	Err      error  // Underlying error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("%s operation failed for report %s: %v", e.Op, e.ReportID, e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for report errors.
func (e *ReportError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewReportError creates a new report error with context.
func NewReportError(op, reportID string, err error) *ReportError {
	return &ReportError{
		Op:       op,
		ReportID: reportID,
		Err:      err,
	}
}

// IsReportNotFound checks if an error indicates a report was not found.
func IsReportNotFound(err error) bool {
	return errors.Is(err, ErrReportNotFound)
}
