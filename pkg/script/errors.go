package script

import (
	"errors"
	"fmt"
)

var (
	// ErrEntryPointMissing indicates a script without the requested callable.
	ErrEntryPointMissing = errors.New("entry point not found in script")

	// ErrDataSourceUnconfigured is returned by every db call when no DSN was configured.
	ErrDataSourceUnconfigured = errors.New("data source is not configured")
)

// EntryPointMissingError reports the name of the callable a script failed to define.
type EntryPointMissingError struct {
	Name string
}

func (e *EntryPointMissingError) Error() string {
	return fmt.Sprintf("function %q not found in script", e.Name)
}

func (e *EntryPointMissingError) Unwrap() error {
	return ErrEntryPointMissing
}

// IsEntryPointMissing checks if an error reports an undefined entry point.
func IsEntryPointMissing(err error) bool {
	return errors.Is(err, ErrEntryPointMissing)
}
