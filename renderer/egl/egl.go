// EGL+GLES2 on GBM implementation of the renderer seams. One Allocator per
// GPU: it owns the gbm device and the shared EGL context, swapchains wrap
// one gbm surface each and scan out through page flips
package egl

/*
#cgo pkg-config: egl glesv2 gbm

#include <stdlib.h>

#include <EGL/egl.h>
#include <EGL/eglext.h>
#include <GLES2/gl2.h>
#include <GLES2/gl2ext.h>
#include <gbm.h>

static EGLDisplay getPlatformDisplayGBM(void *gbmDev) {
	PFNEGLGETPLATFORMDISPLAYEXTPROC get =
		(PFNEGLGETPLATFORMDISPLAYEXTPROC)eglGetProcAddress("eglGetPlatformDisplayEXT");
	if (get != NULL) {
		return get(EGL_PLATFORM_GBM_KHR, gbmDev, NULL);
	}
	return eglGetDisplay((EGLNativeDisplayType)gbmDev);
}

*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/mstarongithub/way2kms/drm"
	"github.com/mstarongithub/way2kms/renderer"
)

// GBM_FORMAT_XRGB8888, identical to the DRM fourcc
const gbmFormatXRGB8888 = C.uint32_t(renderer.FormatXRGB8888)

type Allocator struct {
	card   *drm.Card
	gbmDev *C.struct_gbm_device

	display C.EGLDisplay
	config  C.EGLConfig
	context C.EGLContext

	rend *Renderer
}

func eglError(op string) error {
	return fmt.Errorf("%s: egl error 0x%x", op, uint32(C.eglGetError()))
}

// Builds the gbm device and shared EGL context over an already opened card
func NewAllocator(card *drm.Card) (*Allocator, error) {
	gbmDev := C.gbm_create_device(C.int(card.Fd()))
	if gbmDev == nil {
		return nil, fmt.Errorf("gbm_create_device failed on %s", card.Path())
	}

	a := &Allocator{card: card, gbmDev: gbmDev}

	a.display = C.getPlatformDisplayGBM(unsafe.Pointer(gbmDev))
	if a.display == C.EGLDisplay(C.EGL_NO_DISPLAY) {
		C.gbm_device_destroy(gbmDev)
		return nil, eglError("eglGetPlatformDisplay")
	}

	var major, minor C.EGLint
	if C.eglInitialize(a.display, &major, &minor) == C.EGL_FALSE {
		C.gbm_device_destroy(gbmDev)
		return nil, eglError("eglInitialize")
	}
	logrus.WithFields(logrus.Fields{
		"egl":  fmt.Sprintf("%d.%d", int(major), int(minor)),
		"path": card.Path(),
	}).Debugln("EGL display initialized")

	if C.eglBindAPI(C.EGL_OPENGL_ES_API) == C.EGL_FALSE {
		a.teardown()
		return nil, eglError("eglBindAPI")
	}

	configAttribs := []C.EGLint{
		C.EGL_SURFACE_TYPE, C.EGL_WINDOW_BIT,
		C.EGL_RED_SIZE, 8,
		C.EGL_GREEN_SIZE, 8,
		C.EGL_BLUE_SIZE, 8,
		C.EGL_ALPHA_SIZE, 0,
		C.EGL_RENDERABLE_TYPE, C.EGL_OPENGL_ES2_BIT,
		C.EGL_NONE,
	}
	var numConfigs C.EGLint
	if C.eglChooseConfig(a.display, &configAttribs[0], &a.config, 1, &numConfigs) == C.EGL_FALSE || numConfigs < 1 {
		a.teardown()
		return nil, eglError("eglChooseConfig")
	}

	contextAttribs := []C.EGLint{
		C.EGL_CONTEXT_CLIENT_VERSION, 2,
		C.EGL_NONE,
	}
	a.context = C.eglCreateContext(a.display, a.config, C.EGLContext(C.EGL_NO_CONTEXT), &contextAttribs[0])
	if a.context == C.EGLContext(C.EGL_NO_CONTEXT) {
		a.teardown()
		return nil, eglError("eglCreateContext")
	}

	// Shader compilation needs the context current; a surfaceless bind is
	// enough for that
	C.eglMakeCurrent(a.display, C.EGLSurface(C.EGL_NO_SURFACE), C.EGLSurface(C.EGL_NO_SURFACE), a.context)

	rend, err := newRenderer(a)
	if err != nil {
		a.teardown()
		return nil, err
	}
	a.rend = rend
	return a, nil
}

func (a *Allocator) Renderer() renderer.Renderer { return a.rend }

// Builds a gbm surface sized to the mode and wires it to a CRTC
func (a *Allocator) CreateSwapchain(crtc uint32, mode drm.ModeInfo, connectors []uint32) (renderer.Swapchain, error) {
	return newSwapchain(a, crtc, mode, connectors)
}

func (a *Allocator) Destroy() {
	if a.rend != nil {
		a.rend.Destroy()
		a.rend = nil
	}
	a.teardown()
}

func (a *Allocator) teardown() {
	if a.display != C.EGLDisplay(C.EGL_NO_DISPLAY) {
		C.eglMakeCurrent(a.display, C.EGLSurface(C.EGL_NO_SURFACE), C.EGLSurface(C.EGL_NO_SURFACE), C.EGLContext(C.EGL_NO_CONTEXT))
		if a.context != C.EGLContext(C.EGL_NO_CONTEXT) {
			C.eglDestroyContext(a.display, a.context)
			a.context = C.EGLContext(C.EGL_NO_CONTEXT)
		}
		C.eglTerminate(a.display)
		a.display = C.EGLDisplay(C.EGL_NO_DISPLAY)
	}
	if a.gbmDev != nil {
		C.gbm_device_destroy(a.gbmDev)
		a.gbmDev = nil
	}
}

// Distinguishes losing the whole context from a transient swap hiccup
func classifyEGLError(op string) error {
	code := C.eglGetError()
	err := fmt.Errorf("%s: egl error 0x%x", op, uint32(code))
	if code == C.EGL_CONTEXT_LOST {
		return renderer.ContextLost(err)
	}
	return renderer.Temporary(err)
}
