package drm

import (
	"encoding/binary"
	"errors"

	"golang.org/x/sys/unix"
)

// Event types from the card fd, drm.h DRM_EVENT_*
const (
	eventVblank       = 0x01
	eventFlipComplete = 0x02
)

// A completed page flip or vblank on one CRTC
type Event struct {
	// True for flip-complete events, false for plain vblank
	FlipComplete bool
	Crtc         uint32
	UserData     uint64
	Sequence     uint32
}

// Drains all pending events from the card fd. Returns an empty slice when
// the fd has nothing buffered (the node is non-blocking)
func (c *Card) ReadEvents() ([]Event, error) {
	buf := make([]byte, 1024)
	n, err := unix.Read(int(c.fd), buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return nil, nil
		}
		return nil, err
	}

	var events []Event
	le := binary.LittleEndian
	for off := 0; off+8 <= n; {
		typ := le.Uint32(buf[off:])
		length := int(le.Uint32(buf[off+4:]))
		if length < 8 || off+length > n {
			break
		}
		// struct drm_event_vblank: base(8) user_data(8) tv_sec tv_usec
		// sequence crtc_id
		if (typ == eventVblank || typ == eventFlipComplete) && length >= 32 {
			events = append(events, Event{
				FlipComplete: typ == eventFlipComplete,
				UserData:     le.Uint64(buf[off+8:]),
				Sequence:     le.Uint32(buf[off+24:]),
				Crtc:         le.Uint32(buf[off+28:]),
			})
		}
		off += length
	}
	return events, nil
}
