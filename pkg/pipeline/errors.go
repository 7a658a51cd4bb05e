package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDataFound indicates the test script reported unmet preconditions.
	ErrNoDataFound = errors.New("no data found or preconditions failed")

	// ErrUnknownStage indicates a stage request naming no registered stage.
	ErrUnknownStage = errors.New("unknown pipeline stage")
)

// LogicExecutionError reports a logic script that failed or returned something other than a mapping.
type LogicExecutionError struct {
	Reason string
	Err    error
}

func (e *LogicExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("logic script failed: %v", e.Err)
	}

	return "logic script failed: " + e.Reason
}

func (e *LogicExecutionError) Unwrap() error {
	return e.Err
}

// TestExecutionError reports a test script that raised instead of returning a verdict.
type TestExecutionError struct {
	Err error
}

func (e *TestExecutionError) Error() string {
	return fmt.Sprintf("test script failed: %v", e.Err)
}

func (e *TestExecutionError) Unwrap() error {
	return e.Err
}

// StageError ties a failure to the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
