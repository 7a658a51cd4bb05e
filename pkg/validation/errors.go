package validation

import (
	"errors"
	"strings"
)

// ErrValidation indicates caller input rejected before any script runs.
var ErrValidation = errors.New("validation failed")

// ValidationError names an unknown template or lists missing required arguments.
type ValidationError struct {
	TemplateID  string
	UnknownID   bool
	MissingKeys []string
}

func (e *ValidationError) Error() string {
	if e.UnknownID {
		return "template " + e.TemplateID + " not found"
	}

	return "missing required args for " + e.TemplateID + ": " + strings.Join(e.MissingKeys, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsValidationError checks if an error is a rejected input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
