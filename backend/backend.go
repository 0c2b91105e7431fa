// The hardware display backend: discovers GPUs, negotiates display
// pipelines per monitor, drives the vsync-paced render loop and follows the
// privileged session through revocation and restoration. Everything here
// runs on the one event loop goroutine
package backend

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mstarongithub/way2kms/drm"
	"github.com/mstarongithub/way2kms/eventloop"
	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/output"
	"github.com/mstarongithub/way2kms/renderer"
	"github.com/mstarongithub/way2kms/session"
)

// Paints the compositor scene for one output into the current frame. Owned
// by the shell layer; the backend only gives it geometry and scale
type SceneFunc func(frame renderer.Frame, geometry generaldata.Rect, scale float64) error

// Picks the mode index to drive an output at, given its name and mode list.
// Owned by the configuration layer
type ModeSelectFunc func(outputName string, modes []generaldata.Mode) (int, error)

// Wiring for a Backend. Loop, Session and Outputs are required; the rest
// defaults to something harmless so tool mode and tests can leave gaps
type Config struct {
	Loop    *eventloop.Loop
	Session session.Session
	Outputs *output.Map

	// Canonical device path of the GPU whose renderer should present
	// client buffers. Empty disables the primary-presentation role
	PrimaryGPU string

	// Builds the allocator/render context over a freshly opened card
	NewAllocator func(card *drm.Card) (renderer.Allocator, error)

	Scene      SceneFunc
	ChooseMode ModeSelectFunc

	// Current pointer position in logical coordinates. Owned by the input
	// layer
	PointerLocation func() (float64, float64)
	// Externally owned cursor state
	Cursor *CursorStatus
}

type Backend struct {
	loop     *eventloop.Loop
	session  session.Session
	signaler *session.Signaler
	outputs  *output.Map

	devices map[uint64]*Device

	primaryGPU string
	// Single-owner slot for the render context used to import client
	// buffers. Swapped atomically on device add/remove
	primaryRenderer renderer.Renderer

	newAllocator func(card *drm.Card) (renderer.Allocator, error)

	scene           SceneFunc
	chooseMode      ModeSelectFunc
	pointerLocation func() (float64, float64)
	cursor          *CursorStatus

	startTime time.Time

	// Overridable so the fatal path is testable
	fatalf func(format string, args ...interface{})
}

func New(cfg Config) *Backend {
	b := &Backend{
		loop:            cfg.Loop,
		session:         cfg.Session,
		outputs:         cfg.Outputs,
		devices:         make(map[uint64]*Device),
		primaryGPU:      cfg.PrimaryGPU,
		newAllocator:    cfg.NewAllocator,
		scene:           cfg.Scene,
		chooseMode:      cfg.ChooseMode,
		pointerLocation: cfg.PointerLocation,
		cursor:          cfg.Cursor,
		startTime:       time.Now(),
		fatalf:          logrus.Fatalf,
	}
	if cfg.Session != nil {
		b.signaler = cfg.Session.Signaler()
	} else {
		b.signaler = session.NewSignaler()
	}
	if b.scene == nil {
		b.scene = func(renderer.Frame, generaldata.Rect, float64) error { return nil }
	}
	if b.chooseMode == nil {
		b.chooseMode = func(_ string, _ []generaldata.Mode) (int, error) { return 0, nil }
	}
	if b.pointerLocation == nil {
		b.pointerLocation = func() (float64, float64) { return -1, -1 }
	}
	if b.cursor == nil {
		b.cursor = &CursorStatus{}
	}
	return b
}

// The slot holding the render context client buffers are imported through.
// Nil while no device owns the primary-presentation role
func (b *Backend) PrimaryRenderer() renderer.Renderer {
	return b.primaryRenderer
}

func (b *Backend) Outputs() *output.Map { return b.outputs }

// Rolling frame rate of the surface backing the tagged output
func (b *Backend) SurfaceFps(tag output.KmsTag) (float64, bool) {
	dev, ok := b.devices[tag.DeviceID]
	if !ok {
		return 0, false
	}
	s, ok := dev.surfaces[tag.Crtc]
	if !ok {
		return 0, false
	}
	return s.Fps(), true
}

// Milliseconds since the compositor started, the timestamp base for frame
// completion broadcasts
func (b *Backend) elapsedMs() uint32 {
	return uint32(time.Since(b.startTime).Milliseconds())
}
