package drm

import (
	"fmt"
	"unsafe"
)

type modeCrtc struct {
	setConnectorsPtr uint64
	countConnectors  uint32
	crtcID           uint32
	fbID             uint32
	x, y             uint32
	gammaSize        uint32
	modeValid        uint32
	mode             ModeInfo
}

// Current state of one display controller pipeline. Kept around so a claimed
// CRTC can be restored on teardown
type Crtc struct {
	ID        uint32
	FbID      uint32
	X, Y      uint32
	Mode      ModeInfo
	ModeValid bool
}

func (c *Card) GetCrtc(id uint32) (*Crtc, error) {
	arg := modeCrtc{crtcID: id}
	if err := ioctl(c.fd, ioctlModeGetCrtc, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("get crtc %d: %w", id, err)
	}
	return &Crtc{
		ID:        arg.crtcID,
		FbID:      arg.fbID,
		X:         arg.x,
		Y:         arg.y,
		Mode:      arg.mode,
		ModeValid: arg.modeValid != 0,
	}, nil
}

// Programs the CRTC to scan out fb for the given connectors at the given
// mode. A zero fb with no connectors disables the pipe
func (c *Card) SetCrtc(crtcID, fbID uint32, x, y uint32, connectors []uint32, mode *ModeInfo) error {
	arg := modeCrtc{
		crtcID:          crtcID,
		fbID:            fbID,
		x:               x,
		y:               y,
		countConnectors: uint32(len(connectors)),
	}
	if len(connectors) > 0 {
		arg.setConnectorsPtr = uint64(uintptr(unsafe.Pointer(&connectors[0])))
	}
	if mode != nil {
		arg.mode = *mode
		arg.modeValid = 1
	}
	if err := ioctl(c.fd, ioctlModeSetCrtc, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("set crtc %d: %w", crtcID, err)
	}
	return nil
}

// Restores a previously saved CRTC state
func (c *Card) RestoreCrtc(saved *Crtc, connectors []uint32) error {
	var mode *ModeInfo
	if saved.ModeValid {
		mode = &saved.Mode
	}
	return c.SetCrtc(saved.ID, saved.FbID, saved.X, saved.Y, connectors, mode)
}

type modeCrtcPageFlip struct {
	crtcID   uint32
	fbID     uint32
	flags    uint32
	reserved uint32
	userData uint64
}

const pageFlipEvent = 0x01

// Queues an asynchronous buffer swap on the CRTC. Completion is reported as
// a flip event on the card fd, tagged with userData
func (c *Card) PageFlip(crtcID, fbID uint32, userData uint64) error {
	arg := modeCrtcPageFlip{
		crtcID:   crtcID,
		fbID:     fbID,
		flags:    pageFlipEvent,
		userData: userData,
	}
	if err := ioctl(c.fd, ioctlModeCrtcPageFlip, unsafe.Pointer(&arg)); err != nil {
		return fmt.Errorf("page flip crtc %d: %w", crtcID, err)
	}
	return nil
}
