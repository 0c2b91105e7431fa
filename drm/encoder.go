package drm

import (
	"fmt"
	"unsafe"
)

type modeGetEncoder struct {
	encoderID      uint32
	encoderType    uint32
	crtcID         uint32
	possibleCrtcs  uint32
	possibleClones uint32
}

type Encoder struct {
	ID     uint32
	CrtcID uint32
	// Bitmask over the CRTC index in the resource list
	PossibleCrtcs uint32
}

func (c *Card) GetEncoder(id uint32) (*Encoder, error) {
	arg := modeGetEncoder{encoderID: id}
	if err := ioctl(c.fd, ioctlModeGetEncoder, unsafe.Pointer(&arg)); err != nil {
		return nil, fmt.Errorf("get encoder %d: %w", id, err)
	}
	return &Encoder{
		ID:            arg.encoderID,
		CrtcID:        arg.crtcID,
		PossibleCrtcs: arg.possibleCrtcs,
	}, nil
}
