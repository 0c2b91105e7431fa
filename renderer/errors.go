package renderer

import (
	"errors"
	"fmt"
)

// The previous frame was submitted and acknowledged already, nothing to do
var ErrAlreadySwapped = errors.New("buffer already swapped")

// The session lost the device (VT switch); presenting is pointless until an
// activation signal arrives
var ErrDeviceInactive = errors.New("device inactive")

// A swap failure worth retrying: the device was busy, wedged briefly, or the
// session was revoked mid-flight. Wraps the underlying cause
type TemporaryError struct {
	Err error
}

func (e *TemporaryError) Error() string {
	return fmt.Sprintf("temporary swap failure: %v", e.Err)
}

func (e *TemporaryError) Unwrap() error { return e.Err }

// The rendering context itself is gone. Everything derived from it
// (textures, surfaces) is invalid, there is no recovery
type ContextLostError struct {
	Err error
}

func (e *ContextLostError) Error() string {
	return fmt.Sprintf("rendering context lost: %v", e.Err)
}

func (e *ContextLostError) Unwrap() error { return e.Err }

// Wraps err as a temporary swap failure. nil stays nil
func Temporary(err error) error {
	if err == nil {
		return nil
	}
	return &TemporaryError{Err: err}
}

// Wraps err as a fatal context loss. nil stays nil
func ContextLost(err error) error {
	if err == nil {
		return nil
	}
	return &ContextLostError{Err: err}
}
