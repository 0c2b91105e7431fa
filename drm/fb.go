package drm

import (
	"fmt"
	"unsafe"
)

type modeFBCmd2 struct {
	fbID        uint32
	width       uint32
	height      uint32
	pixelFormat uint32
	flags       uint32
	handles     [4]uint32
	pitches     [4]uint32
	offsets     [4]uint32
	modifier    [4]uint64
}

const fbModifiersFlag = 1 << 1

// Description of one plane of a buffer object for framebuffer creation
type FramebufferPlane struct {
	Handle   uint32
	Pitch    uint32
	Offset   uint32
	Modifier uint64
}

// Registers a buffer object with the kernel as a scanout framebuffer and
// returns its framebuffer id. format is a fourcc code
func (c *Card) AddFramebuffer(width, height, format uint32, planes []FramebufferPlane, withModifiers bool) (uint32, error) {
	if len(planes) == 0 || len(planes) > 4 {
		return 0, fmt.Errorf("framebuffer with %d planes", len(planes))
	}
	arg := modeFBCmd2{
		width:       width,
		height:      height,
		pixelFormat: format,
	}
	if withModifiers {
		arg.flags = fbModifiersFlag
	}
	for i, p := range planes {
		arg.handles[i] = p.Handle
		arg.pitches[i] = p.Pitch
		arg.offsets[i] = p.Offset
		arg.modifier[i] = p.Modifier
	}
	if err := ioctl(c.fd, ioctlModeAddFB2, unsafe.Pointer(&arg)); err != nil {
		return 0, fmt.Errorf("add framebuffer %dx%d: %w", width, height, err)
	}
	return arg.fbID, nil
}

func (c *Card) RemoveFramebuffer(fbID uint32) error {
	if err := ioctl(c.fd, ioctlModeRmFB, unsafe.Pointer(&fbID)); err != nil {
		return fmt.Errorf("remove framebuffer %d: %w", fbID, err)
	}
	return nil
}
