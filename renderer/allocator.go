package renderer

import (
	"github.com/mstarongithub/way2kms/drm"
)

// Buffer-object factory and render context over one open device. The EGL
// implementation builds this from a GBM device; tests use in-memory fakes
type Allocator interface {
	// The GL-capable context bound to this device
	Renderer() Renderer
	// Builds a swapchain scanning out on the given CRTC at the given mode,
	// driving the listed connectors
	CreateSwapchain(crtc uint32, mode drm.ModeInfo, connectors []uint32) (Swapchain, error)
	Destroy()
}
