// Renderer and swapchain seams between the display backend core and the
// actual GPU plumbing. The EGL/GLES implementation lives in renderer/egl,
// tests run against in-memory fakes
package renderer

import (
	"image"

	generaldata "github.com/mstarongithub/way2kms/general-data"
)

// A buffer format as advertised for dmabuf import: fourcc code plus layout
// modifier
type Format struct {
	Code     uint32
	Modifier uint64
}

// fourcc_code('X', 'R', '2', '4'), the one format every scanout path supports
const FormatXRGB8888 = uint32('X') | uint32('R')<<8 | uint32('2')<<16 | uint32('4')<<24

// No layout modifier
const ModifierLinear = uint64(0)

// One plane of an externally allocated GPU buffer
type DmabufPlane struct {
	Fd       int
	Pitch    uint32
	Offset   uint32
	Modifier uint64
}

// An externally allocated GPU buffer handed to us for import
type Dmabuf struct {
	Size   generaldata.Vector2i
	Format uint32
	Planes []DmabufPlane
}

// A GPU texture owned by a renderer
type Texture interface {
	Size() generaldata.Vector2i
	Destroy()
}

// One frame being drawn. Handed to draw callbacks by Renderer.Render
type Frame interface {
	Clear(r, g, b, a float32) error
	// Draws the texture with its top-left corner at loc, in buffer
	// coordinates already scaled by the output scale
	RenderTextureAt(tex Texture, loc generaldata.Vector2i, scale float64, alpha float32) error
}

// A render target the renderer can draw into, produced by a swapchain
type Buffer interface {
	BufferSize() generaldata.Vector2i
}

// A GL-capable rendering context bound to one device
type Renderer interface {
	// Makes buf the current render target
	Bind(buf Buffer) error
	// Runs draw against a frame of the given size with the given transform
	// applied. The frame is only valid for the duration of the callback
	Render(size generaldata.Vector2i, transform generaldata.Transform, draw func(Frame) error) error
	// Uploads a CPU-side bitmap, used for the built-in cursor image
	ImportBitmap(img *image.RGBA) (Texture, error)
	// Imports an externally allocated buffer as a texture
	ImportDmabuf(buf *Dmabuf) (Texture, error)
	// Formats this context can import
	SupportedFormats() []Format
	Destroy()
}

// The rotating buffer set driving one CRTC
type Swapchain interface {
	// Signals that the flip queued by QueueBuffer has hit the screen.
	// Called from the device's flip-complete event, never from render code
	PageFlipped()
	// Acknowledges the previously presented buffer, freeing it for reuse.
	// No-op if nothing was in flight since the last acknowledgement;
	// ErrAlreadySwapped while a queued flip has not been signalled via
	// PageFlipped yet (the buffer is still being scanned out)
	FrameSubmitted() error
	// Acquires the next free buffer of the chain
	NextBuffer() (Buffer, error)
	// Queues the buffer last acquired with NextBuffer for presentation
	QueueBuffer() error
	// Session pause/resume bookkeeping
	Suspend()
	Resume()
	Destroy()
}
