package drm

import (
	"fmt"
	"unsafe"
)

type modeCardRes struct {
	fbIDPtr         uint64
	crtcIDPtr       uint64
	connectorIDPtr  uint64
	encoderIDPtr    uint64
	countFBs        uint32
	countCrtcs      uint32
	countConnectors uint32
	countEncoders   uint32
	minWidth        uint32
	maxWidth        uint32
	minHeight       uint32
	maxHeight       uint32
}

// The mode-setting resource handle lists of a card (planes excluded)
type Resources struct {
	FBs        []uint32
	Crtcs      []uint32
	Connectors []uint32
	Encoders   []uint32

	MinWidth, MaxWidth   uint32
	MinHeight, MaxHeight uint32
}

// Handles of all CRTCs usable with the given encoder. possible_crtcs is a
// bitmask over the index of the CRTC in the resource list
func (r *Resources) FilterCrtcs(possibleCrtcs uint32) []uint32 {
	var out []uint32
	for i, crtc := range r.Crtcs {
		if possibleCrtcs&(1<<uint(i)) != 0 {
			out = append(out, crtc)
		}
	}
	return out
}

// Fetches the resource handle lists. Two-call pattern: first ask for counts,
// then for the lists themselves. Counts can grow between the calls on
// hotplug, in which case the kernel truncates and we just retry
func (c *Card) GetResources() (*Resources, error) {
	for {
		var counts modeCardRes
		if err := ioctl(c.fd, ioctlModeGetResources, unsafe.Pointer(&counts)); err != nil {
			return nil, fmt.Errorf("get resource counts: %w", err)
		}

		res := &Resources{
			FBs:        make([]uint32, counts.countFBs),
			Crtcs:      make([]uint32, counts.countCrtcs),
			Connectors: make([]uint32, counts.countConnectors),
			Encoders:   make([]uint32, counts.countEncoders),
			MinWidth:   counts.minWidth,
			MaxWidth:   counts.maxWidth,
			MinHeight:  counts.minHeight,
			MaxHeight:  counts.maxHeight,
		}

		arg := counts
		if len(res.FBs) > 0 {
			arg.fbIDPtr = uint64(uintptr(unsafe.Pointer(&res.FBs[0])))
		}
		if len(res.Crtcs) > 0 {
			arg.crtcIDPtr = uint64(uintptr(unsafe.Pointer(&res.Crtcs[0])))
		}
		if len(res.Connectors) > 0 {
			arg.connectorIDPtr = uint64(uintptr(unsafe.Pointer(&res.Connectors[0])))
		}
		if len(res.Encoders) > 0 {
			arg.encoderIDPtr = uint64(uintptr(unsafe.Pointer(&res.Encoders[0])))
		}
		if err := ioctl(c.fd, ioctlModeGetResources, unsafe.Pointer(&arg)); err != nil {
			return nil, fmt.Errorf("get resource lists: %w", err)
		}

		if arg.countFBs > counts.countFBs || arg.countCrtcs > counts.countCrtcs ||
			arg.countConnectors > counts.countConnectors || arg.countEncoders > counts.countEncoders {
			continue
		}
		res.FBs = res.FBs[:arg.countFBs]
		res.Crtcs = res.Crtcs[:arg.countCrtcs]
		res.Connectors = res.Connectors[:arg.countConnectors]
		res.Encoders = res.Encoders[:arg.countEncoders]
		return res, nil
	}
}
