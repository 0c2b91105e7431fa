package egl

/*
#include <EGL/egl.h>
#include <EGL/eglext.h>
#include <gbm.h>

// gbm_bo_get_handle returns a union, which cgo cannot field-access
static uint32_t boHandle(struct gbm_bo *bo) {
	return gbm_bo_get_handle(bo).u32;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/mstarongithub/way2kms/drm"
	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/renderer"
)

// A gbm surface scanning out on one CRTC. Buffer rotation is the kernel's:
// eglSwapBuffers produces a front buffer object, we register it as a
// framebuffer and page-flip to it, and release it once the flip for its
// successor completed
type Swapchain struct {
	alloc *Allocator

	crtc       uint32
	mode       drm.ModeInfo
	connectors []uint32

	gbmSurface *C.struct_gbm_surface
	eglSurface C.EGLSurface

	// Framebuffer ids by buffer object; gbm cycles a small fixed set
	fbs map[*C.struct_gbm_bo]uint32

	// Buffer currently on screen and buffer with a flip pending
	front    *C.struct_gbm_bo
	inFlight *C.struct_gbm_bo
	// True between a queued page flip and its completion event
	flipPending bool

	// False until the first successful modeset, and reset on Resume since
	// the CRTC state does not survive a VT switch
	modesetDone bool
	suspended   bool
}

func newSwapchain(a *Allocator, crtc uint32, mode drm.ModeInfo, connectors []uint32) (*Swapchain, error) {
	width := C.uint32_t(mode.Hdisplay)
	height := C.uint32_t(mode.Vdisplay)

	gbmSurface := C.gbm_surface_create(a.gbmDev, width, height, gbmFormatXRGB8888,
		C.GBM_BO_USE_SCANOUT|C.GBM_BO_USE_RENDERING)
	if gbmSurface == nil {
		return nil, fmt.Errorf("gbm_surface_create %dx%d failed", mode.Hdisplay, mode.Vdisplay)
	}

	eglSurface := C.eglCreateWindowSurface(a.display, a.config,
		C.EGLNativeWindowType(uintptr(unsafe.Pointer(gbmSurface))), nil)
	if eglSurface == C.EGLSurface(C.EGL_NO_SURFACE) {
		C.gbm_surface_destroy(gbmSurface)
		return nil, eglError("eglCreateWindowSurface")
	}

	logrus.WithFields(logrus.Fields{
		"crtc": crtc,
		"mode": mode.String(),
	}).Debugln("Swapchain created")

	return &Swapchain{
		alloc:      a,
		crtc:       crtc,
		mode:       mode,
		connectors: connectors,
		gbmSurface: gbmSurface,
		eglSurface: eglSurface,
		fbs:        make(map[*C.struct_gbm_bo]uint32),
	}, nil
}

// The render target handed to Renderer.Bind
type swapchainBuffer struct {
	sc *Swapchain
}

func (b *swapchainBuffer) BufferSize() generaldata.Vector2i {
	return generaldata.Vector2i{X: int(b.sc.mode.Hdisplay), Y: int(b.sc.mode.Vdisplay)}
}

func (s *Swapchain) PageFlipped() {
	s.flipPending = false
}

func (s *Swapchain) FrameSubmitted() error {
	if s.flipPending {
		// The queued buffer has not reached the screen; releasing front
		// now would hand a displayed buffer back to the renderer
		return renderer.ErrAlreadySwapped
	}
	if s.inFlight == nil {
		return nil
	}
	if s.front != nil {
		C.gbm_surface_release_buffer(s.gbmSurface, s.front)
	}
	s.front = s.inFlight
	s.inFlight = nil
	return nil
}

func (s *Swapchain) NextBuffer() (renderer.Buffer, error) {
	if s.suspended {
		return nil, renderer.Temporary(renderer.ErrDeviceInactive)
	}
	return &swapchainBuffer{sc: s}, nil
}

func (s *Swapchain) QueueBuffer() error {
	if s.suspended {
		return renderer.Temporary(renderer.ErrDeviceInactive)
	}
	if s.inFlight != nil {
		// The previous flip has not completed yet, overlapping submissions
		// are rejected rather than queued
		return renderer.ErrAlreadySwapped
	}

	if C.eglSwapBuffers(s.alloc.display, s.eglSurface) == C.EGL_FALSE {
		return classifyEGLError("eglSwapBuffers")
	}

	bo := C.gbm_surface_lock_front_buffer(s.gbmSurface)
	if bo == nil {
		return renderer.Temporary(fmt.Errorf("gbm front buffer lock failed on crtc %d", s.crtc))
	}

	fb, err := s.framebuffer(bo)
	if err != nil {
		C.gbm_surface_release_buffer(s.gbmSurface, bo)
		return renderer.Temporary(err)
	}

	card := s.alloc.card
	if !s.modesetDone {
		if err := card.SetCrtc(s.crtc, fb, 0, 0, s.connectors, &s.mode); err != nil {
			C.gbm_surface_release_buffer(s.gbmSurface, bo)
			return renderer.Temporary(err)
		}
		s.modesetDone = true
	}

	// The flip to the very first framebuffer is a flip onto itself; it still
	// produces the vblank event that paces every frame after it
	if err := card.PageFlip(s.crtc, fb, uint64(s.crtc)); err != nil {
		C.gbm_surface_release_buffer(s.gbmSurface, bo)
		return renderer.Temporary(err)
	}

	s.inFlight = bo
	s.flipPending = true
	return nil
}

// Looks up or registers the framebuffer for a buffer object
func (s *Swapchain) framebuffer(bo *C.struct_gbm_bo) (uint32, error) {
	if fb, ok := s.fbs[bo]; ok {
		return fb, nil
	}
	handle := uint32(C.boHandle(bo))
	stride := uint32(C.gbm_bo_get_stride(bo))
	fb, err := s.alloc.card.AddFramebuffer(
		uint32(s.mode.Hdisplay), uint32(s.mode.Vdisplay), renderer.FormatXRGB8888,
		[]drm.FramebufferPlane{{Handle: handle, Pitch: stride}}, false)
	if err != nil {
		return 0, err
	}
	s.fbs[bo] = fb
	return fb, nil
}

func (s *Swapchain) Suspend() {
	s.suspended = true
}

func (s *Swapchain) Resume() {
	s.suspended = false
	// Whoever held the VT in between owned the CRTC, the next frame has to
	// modeset again. A flip that was pending at revocation will never
	// signal, treat it as done
	s.modesetDone = false
	s.flipPending = false
}

func (s *Swapchain) Destroy() {
	if s.inFlight != nil {
		C.gbm_surface_release_buffer(s.gbmSurface, s.inFlight)
		s.inFlight = nil
	}
	if s.front != nil {
		C.gbm_surface_release_buffer(s.gbmSurface, s.front)
		s.front = nil
	}
	for bo, fb := range s.fbs {
		if err := s.alloc.card.RemoveFramebuffer(fb); err != nil {
			logrus.WithError(err).Warnln("Leaked framebuffer on swapchain teardown")
		}
		delete(s.fbs, bo)
	}
	if s.eglSurface != C.EGLSurface(C.EGL_NO_SURFACE) {
		C.eglDestroySurface(s.alloc.display, s.eglSurface)
		s.eglSurface = C.EGLSurface(C.EGL_NO_SURFACE)
	}
	if s.gbmSurface != nil {
		C.gbm_surface_destroy(s.gbmSurface)
		s.gbmSurface = nil
	}
}
