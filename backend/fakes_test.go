package backend

import (
	"fmt"
	"image"

	"github.com/mstarongithub/way2kms/drm"
	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/renderer"
	"github.com/mstarongithub/way2kms/session"
)

// In-memory stand-ins for the kernel and GPU sides, so lifecycle and
// scheduling behavior is testable without hardware.

type fakeSession struct {
	signaler *session.Signaler
	opened   []string
	closed   []int
	vt       int
}

func newFakeSession() *fakeSession {
	return &fakeSession{signaler: session.NewSignaler()}
}

func (s *fakeSession) OpenDevice(path string) (int, error) {
	s.opened = append(s.opened, path)
	return -1, fmt.Errorf("no real devices in tests")
}
func (s *fakeSession) CloseDevice(fd int) error {
	s.closed = append(s.closed, fd)
	return nil
}
func (s *fakeSession) Active() bool                { return true }
func (s *fakeSession) SwitchVT(vt int) error       { s.vt = vt; return nil }
func (s *fakeSession) Seat() string                { return "seat0" }
func (s *fakeSession) Signaler() *session.Signaler { return s.signaler }
func (s *fakeSession) Close() error                { return nil }

type fakeTexture struct {
	size      generaldata.Vector2i
	destroyed bool
}

func (t *fakeTexture) Size() generaldata.Vector2i { return t.size }
func (t *fakeTexture) Destroy()                   { t.destroyed = true }

type fakeBuffer struct {
	size generaldata.Vector2i
}

func (b *fakeBuffer) BufferSize() generaldata.Vector2i { return b.size }

type fakeFrame struct {
	cleared  bool
	clearRGB [4]float32
	textures []renderer.Texture
}

func (f *fakeFrame) Clear(r, g, b, a float32) error {
	f.cleared = true
	f.clearRGB = [4]float32{r, g, b, a}
	return nil
}

func (f *fakeFrame) RenderTextureAt(tex renderer.Texture, _ generaldata.Vector2i, _ float64, _ float32) error {
	f.textures = append(f.textures, tex)
	return nil
}

type fakeRenderer struct {
	bindCount   int
	frames      []*fakeFrame
	renderErr   error
	importCount int
}

func (r *fakeRenderer) Bind(renderer.Buffer) error { r.bindCount++; return nil }

func (r *fakeRenderer) Render(size generaldata.Vector2i, _ generaldata.Transform, draw func(renderer.Frame) error) error {
	if r.renderErr != nil {
		return r.renderErr
	}
	frame := &fakeFrame{}
	r.frames = append(r.frames, frame)
	return draw(frame)
}

func (r *fakeRenderer) ImportBitmap(img *image.RGBA) (renderer.Texture, error) {
	r.importCount++
	b := img.Bounds()
	return &fakeTexture{size: generaldata.Vector2i{X: b.Dx(), Y: b.Dy()}}, nil
}

func (r *fakeRenderer) ImportDmabuf(buf *renderer.Dmabuf) (renderer.Texture, error) {
	return &fakeTexture{size: buf.Size}, nil
}

func (r *fakeRenderer) SupportedFormats() []renderer.Format {
	return []renderer.Format{{Code: renderer.FormatXRGB8888}}
}

func (r *fakeRenderer) Destroy() {}

type fakeSwapchain struct {
	crtc uint32
	mode drm.ModeInfo

	// Popped one per QueueBuffer; empty means success
	queueErrs []error

	queued    int
	submitted int
	suspends  int
	resumes   int
	destroyed bool

	// Mirrors the real chain: a queued buffer stays in flight until the
	// flip-complete ack, and an unacknowledged flip rejects new frames
	inFlight    bool
	flipPending bool
}

func (s *fakeSwapchain) PageFlipped() { s.flipPending = false }

func (s *fakeSwapchain) FrameSubmitted() error {
	if s.flipPending {
		return renderer.ErrAlreadySwapped
	}
	s.submitted++
	s.inFlight = false
	return nil
}

func (s *fakeSwapchain) NextBuffer() (renderer.Buffer, error) {
	return &fakeBuffer{size: generaldata.Vector2i{X: int(s.mode.Hdisplay), Y: int(s.mode.Vdisplay)}}, nil
}

func (s *fakeSwapchain) QueueBuffer() error {
	if s.inFlight {
		return renderer.ErrAlreadySwapped
	}
	s.queued++
	if len(s.queueErrs) > 0 {
		err := s.queueErrs[0]
		s.queueErrs = s.queueErrs[1:]
		return err
	}
	s.inFlight = true
	s.flipPending = true
	return nil
}

func (s *fakeSwapchain) Suspend() { s.suspends++ }
func (s *fakeSwapchain) Resume() {
	s.resumes++
	s.flipPending = false
}
func (s *fakeSwapchain) Destroy() { s.destroyed = true }

type fakeAllocator struct {
	rend *fakeRenderer
	// CRTCs whose swapchain creation should fail
	failCrtcs map[uint32]bool
	// Queue errors handed to the next created swapchain
	pendingQueueErrs []error

	created   map[uint32]*fakeSwapchain
	destroyed bool
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{
		rend:      &fakeRenderer{},
		failCrtcs: map[uint32]bool{},
		created:   map[uint32]*fakeSwapchain{},
	}
}

func (a *fakeAllocator) Renderer() renderer.Renderer { return a.rend }

func (a *fakeAllocator) CreateSwapchain(crtc uint32, mode drm.ModeInfo, _ []uint32) (renderer.Swapchain, error) {
	if a.failCrtcs[crtc] {
		return nil, fmt.Errorf("no swapchain for crtc %d", crtc)
	}
	sc := &fakeSwapchain{crtc: crtc, mode: mode, queueErrs: a.pendingQueueErrs}
	a.pendingQueueErrs = nil
	a.created[crtc] = sc
	return sc, nil
}

func (a *fakeAllocator) Destroy() { a.destroyed = true }

type fakeCard struct {
	resources  drm.Resources
	connectors map[uint32]drm.Connector
	encoders   map[uint32]drm.Encoder
}

func (c *fakeCard) GetResources() (*drm.Resources, error) {
	res := c.resources
	return &res, nil
}

func (c *fakeCard) GetConnector(id uint32) (*drm.Connector, error) {
	conn, ok := c.connectors[id]
	if !ok {
		return nil, fmt.Errorf("no connector %d", id)
	}
	return &conn, nil
}

func (c *fakeCard) GetEncoder(id uint32) (*drm.Encoder, error) {
	enc, ok := c.encoders[id]
	if !ok {
		return nil, fmt.Errorf("no encoder %d", id)
	}
	return &enc, nil
}

func (c *fakeCard) GetCrtc(id uint32) (*drm.Crtc, error) {
	return &drm.Crtc{ID: id}, nil
}

func testMode(w, h uint16, preferred bool) drm.ModeInfo {
	m := drm.ModeInfo{Hdisplay: w, Vdisplay: h, Vrefresh: 60}
	if preferred {
		m.Type = 1 << 3
	}
	return m
}

// One card with two connected connectors (HDMI-A-1, DP-1), one encoder
// each, and two CRTCs both encoders can drive
func twoHeadCard() *fakeCard {
	return &fakeCard{
		resources: drm.Resources{
			Crtcs:      []uint32{100, 101},
			Connectors: []uint32{1, 2},
			Encoders:   []uint32{10, 20},
		},
		connectors: map[uint32]drm.Connector{
			1: {
				ID: 1, Type: drm.ConnectorHDMIA, TypeID: 1, State: drm.Connected,
				MmWidth: 520, MmHeight: 290,
				Encoders: []uint32{10},
				Modes:    []drm.ModeInfo{testMode(1920, 1080, true), testMode(1280, 720, false)},
			},
			2: {
				ID: 2, Type: drm.ConnectorDisplayPort, TypeID: 1, State: drm.Connected,
				Encoders: []uint32{20},
				Modes:    []drm.ModeInfo{testMode(2560, 1440, true)},
			},
		},
		encoders: map[uint32]drm.Encoder{
			10: {ID: 10, PossibleCrtcs: 0b11},
			20: {ID: 20, PossibleCrtcs: 0b11},
		},
	}
}
