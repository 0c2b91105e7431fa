package renderer

import (
	"errors"
	"fmt"
	"testing"
)

func TestTemporaryWrapsCause(t *testing.T) {
	cause := errors.New("drm busy")
	err := Temporary(cause)

	var temp *TemporaryError
	if !errors.As(err, &temp) {
		t.Fatalf("not recognized as temporary: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause lost through wrapping")
	}
	if Temporary(nil) != nil {
		t.Errorf("Temporary(nil) is not nil")
	}
}

func TestContextLostWrapsCause(t *testing.T) {
	cause := errors.New("egl context lost")
	err := ContextLost(cause)

	var lost *ContextLostError
	if !errors.As(err, &lost) {
		t.Fatalf("not recognized as context loss: %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause lost through wrapping")
	}
	if ContextLost(nil) != nil {
		t.Errorf("ContextLost(nil) is not nil")
	}
}

// A temporary failure wrapping device inactivity stays identifiable through
// extra fmt wrapping
func TestDeviceInactiveThroughLayers(t *testing.T) {
	err := fmt.Errorf("queueing buffer: %w", Temporary(ErrDeviceInactive))
	if !errors.Is(err, ErrDeviceInactive) {
		t.Errorf("device inactivity not detectable: %v", err)
	}
	var temp *TemporaryError
	if !errors.As(err, &temp) {
		t.Errorf("temporary classification not detectable: %v", err)
	}
}
