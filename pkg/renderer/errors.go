package renderer

import (
	"errors"
	"fmt"
)

// ErrRender matches every failure reported by or on the way to the renderer.
var ErrRender = errors.New("pdf render failed")

// RenderFailure carries the renderer's own message. StatusCode is zero when
// the service could not be reached at all.
type RenderFailure struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RenderFailure) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("renderer unreachable: %s", e.Message)
	}

	return fmt.Sprintf("renderer failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *RenderFailure) Unwrap() error {
	return e.Err
}

func (e *RenderFailure) Is(target error) bool {
	return target == ErrRender
}

// IsRenderFailure checks if an error came from the renderer.
func IsRenderFailure(err error) bool {
	return errors.Is(err, ErrRender)
}
