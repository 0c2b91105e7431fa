package backend

import (
	"image"

	"github.com/sirupsen/logrus"

	"github.com/mstarongithub/way2kms/drm"
	"github.com/mstarongithub/way2kms/eventloop"
	"github.com/mstarongithub/way2kms/output"
	"github.com/mstarongithub/way2kms/renderer"
	"github.com/mstarongithub/way2kms/session"
)

// The mode-setting calls the pipeline resolver needs from an open card.
// *drm.Card satisfies this; tests feed canned resources through a fake
type Modesetter interface {
	GetResources() (*drm.Resources, error)
	GetConnector(id uint32) (*drm.Connector, error)
	GetEncoder(id uint32) (*drm.Encoder, error)
	GetCrtc(id uint32) (*drm.Crtc, error)
}

// One open GPU node: its allocator, its render context and the surfaces it
// currently drives
type Device struct {
	id   uint64
	path string
	fd   int

	card  Modesetter
	alloc renderer.Allocator
	rend  renderer.Renderer

	// Keyed by CRTC handle
	surfaces map[uint32]*Surface

	// Whether this device's renderer sits in the primary-presentation slot
	primary bool

	// Imported cursor textures, one per distinct bitmap
	pointerTextures map[*image.RGBA]renderer.Texture

	restartToken session.SignalToken
	eventToken   eventloop.SourceToken
	hasEventFD   bool
}

// Handles a hotplug "added" event (and startup enumeration): opens the node
// through the session, builds allocator and render context, resolves the
// display pipelines and schedules the first frame for each. Any failure
// skips the device without retaining partial state
func (b *Backend) DeviceAdded(devID uint64, path string) {
	fd, err := b.session.OpenDevice(path)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"device": devID,
			"path":   path,
		}).Warnln("Skipping device, open failed")
		return
	}

	card, err := drm.NewCard(uintptr(fd), path)
	if err != nil {
		logrus.WithError(err).WithField("device", devID).Warnln("Skipping device, drm error")
		_ = b.session.CloseDevice(fd)
		return
	}

	if b.newAllocator == nil {
		logrus.WithField("device", devID).Warnln("Skipping device, no allocator factory wired")
		_ = b.session.CloseDevice(fd)
		return
	}
	alloc, err := b.newAllocator(card)
	if err != nil {
		logrus.WithError(err).WithField("device", devID).Warnln("Skipping device, allocator/context error")
		_ = b.session.CloseDevice(fd)
		return
	}

	dev := &Device{
		id:              card.DeviceID(),
		path:            path,
		fd:              fd,
		card:            card,
		alloc:           alloc,
		rend:            alloc.Renderer(),
		pointerTextures: make(map[*image.RGBA]renderer.Texture),
	}

	if b.primaryGPU != "" && card.CanonicalPath() == b.primaryGPU {
		logrus.WithField("path", path).Infoln("Using device as primary render context")
		b.primaryRenderer = dev.rend
		dev.primary = true
	}

	// Page-flip completions arrive on the card fd
	token, err := b.loop.AddFD(fd, func() { b.dispatchCardEvents(dev.id, card) })
	if err != nil {
		logrus.WithError(err).WithField("device", devID).Warnln("Skipping device, event registration failed")
		if dev.primary {
			b.primaryRenderer = nil
		}
		alloc.Destroy()
		_ = b.session.CloseDevice(fd)
		return
	}
	dev.eventToken = token
	dev.hasEventFD = true

	b.addDevice(dev)
}

// Registers an opened device: resolves pipelines, schedules initial
// renders and hooks up session signals. Split from DeviceAdded so the
// lifecycle is exercisable without hardware
func (b *Backend) addDevice(dev *Device) {
	dev.surfaces = b.scanConnectors(dev)

	devID := dev.id
	dev.restartToken = b.signaler.Register(func(sig session.Signal) {
		switch sig.(type) {
		case session.ActivateSession, session.ActivateDevice:
			// Renders are queued on the next idle slot, never from inside
			// the signal dispatch
			b.loop.Idle(func() { b.RenderAll(devID) })
		}
	})

	logrus.WithFields(logrus.Fields{
		"device":   dev.id,
		"surfaces": len(dev.surfaces),
	}).Debugln("Device registered")

	b.devices[dev.id] = dev

	for crtc := range dev.surfaces {
		b.scheduleInitialRender(dev.id, crtc)
	}
}

// Handles a hotplug "changed" event: the device identity stays, the
// surface and output sets are rebuilt in place
func (b *Backend) DeviceChanged(devID uint64) {
	dev, ok := b.devices[devID]
	if !ok {
		return
	}

	// Drop this device's outputs first; the rescan registers fresh ones
	// for every pipeline that is still (or newly) live
	b.outputs.Retain(func(o *output.Output) bool {
		return o.Tag().DeviceID != devID
	})

	old := dev.surfaces
	dev.surfaces = b.scanConnectors(dev)
	for _, s := range old {
		s.destroy(b.signaler)
	}

	for crtc := range dev.surfaces {
		b.scheduleInitialRender(devID, crtc)
	}
}

// Handles a hotplug "removed" event: full teardown of the device and
// everything hanging off it
func (b *Backend) DeviceRemoved(devID uint64) {
	dev, ok := b.devices[devID]
	if !ok {
		return
	}
	delete(b.devices, devID)

	for _, s := range dev.surfaces {
		s.destroy(b.signaler)
	}
	dev.surfaces = nil
	logrus.WithField("device", devID).Debugln("Surfaces dropped")

	b.outputs.Retain(func(o *output.Output) bool {
		return o.Tag().DeviceID != devID
	})

	if dev.hasEventFD {
		b.loop.RemoveFD(dev.eventToken)
	}
	b.signaler.Unregister(dev.restartToken)

	for _, tex := range dev.pointerTextures {
		tex.Destroy()
	}

	if dev.primary {
		b.primaryRenderer = nil
	}

	if dev.alloc != nil {
		dev.alloc.Destroy()
	}
	if dev.fd >= 0 {
		_ = b.session.CloseDevice(dev.fd)
	}
	logrus.WithField("device", devID).Debugln("Dropping device")
}

func (b *Backend) dispatchCardEvents(devID uint64, card *drm.Card) {
	events, err := card.ReadEvents()
	if err != nil {
		logrus.WithError(err).WithField("device", devID).Errorln("Device event read failed")
		return
	}
	for _, ev := range events {
		if !ev.FlipComplete {
			continue
		}
		crtc := ev.Crtc
		if crtc == 0 {
			// Pre-4.12 kernels don't fill crtc_id, we stashed it in the
			// flip's user data
			crtc = uint32(ev.UserData)
		}
		if dev, ok := b.devices[devID]; ok {
			if surface, ok := dev.surfaces[crtc]; ok {
				surface.swapchain.PageFlipped()
			}
		}
		b.Render(devID, crtc)
	}
}
