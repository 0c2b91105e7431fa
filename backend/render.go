package backend

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/output"
	"github.com/mstarongithub/way2kms/renderer"
)

// Transient failures are retried at roughly the refresh rate, indefinitely,
// until the render succeeds or the surface is torn down
const retryInterval = time.Second / 60

// Renders the surface on one CRTC of the device. Called from the page-flip
// completion handler and from retry timers
func (b *Backend) Render(devID uint64, crtc uint32) {
	b.render(devID, &crtc)
}

// Renders every surface the device currently owns
func (b *Backend) RenderAll(devID uint64) {
	b.render(devID, nil)
}

func (b *Backend) render(devID uint64, crtc *uint32) {
	dev, ok := b.devices[devID]
	if !ok {
		logrus.WithField("device", devID).Errorln("Trying to render on non-existent device")
		return
	}

	var targets []*Surface
	if crtc != nil {
		// A retry timer may outlive its surface; the lookup failing is the
		// cancellation
		if s, ok := dev.surfaces[*crtc]; ok {
			targets = append(targets, s)
		}
	} else {
		for _, s := range dev.surfaces {
			targets = append(targets, s)
		}
	}

	for _, surface := range targets {
		err := b.renderSurface(dev, surface)
		if err == nil {
			// Clients may start drawing their next frame
			b.outputs.SendFrames(b.elapsedMs())
			continue
		}

		logrus.WithError(err).WithFields(logrus.Fields{
			"device": devID,
			"crtc":   surface.id.Crtc,
		}).Warnln("Error during rendering")

		reschedule, fatal := classifySwapError(err)
		if fatal {
			b.fatalf("Rendering loop lost: %v", err)
			return
		}
		if reschedule {
			logrus.WithFields(logrus.Fields{
				"device": devID,
				"crtc":   surface.id.Crtc,
			}).Debugln("Rescheduling")
			retryCrtc := surface.id.Crtc
			b.loop.AddTimer(retryInterval, func() { b.Render(devID, retryCrtc) })
		}
	}
}

// Decides what to do about a swap failure. AlreadySwapped is benign, and so
// is a temporary failure caused by the session being revoked mid-flight
// (device inactive / permission denied); other temporary failures retry.
// Context loss is fatal: the context and everything derived from it is
// unusable
func classifySwapError(err error) (reschedule bool, fatal bool) {
	var lost *renderer.ContextLostError
	if errors.As(err, &lost) {
		return false, true
	}
	if errors.Is(err, renderer.ErrAlreadySwapped) {
		return false, false
	}
	var temporary *renderer.TemporaryError
	if errors.As(err, &temporary) {
		if errors.Is(err, renderer.ErrDeviceInactive) ||
			errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return false, false
		}
		return true, false
	}
	// Unclassified failures get the retry treatment
	return true, false
}

// One full frame for one surface: ack the previous submission, draw the
// scene, composite the pointer, queue for presentation
func (b *Backend) renderSurface(dev *Device, surface *Surface) error {
	if err := surface.swapchain.FrameSubmitted(); err != nil {
		return err
	}

	out := b.outputs.FindByTag(output.KmsTag{DeviceID: surface.id.Device, Crtc: surface.id.Crtc})
	if out == nil {
		// Raced with removal, nothing to draw on
		return nil
	}
	geometry := out.Geometry()
	scale := out.Scale()
	mode := out.CurrentMode()

	buf, err := surface.swapchain.NextBuffer()
	if err != nil {
		return err
	}
	if err := dev.rend.Bind(buf); err != nil {
		return err
	}

	err = dev.rend.Render(mode.Size, generaldata.TransformFlipped180, func(frame renderer.Frame) error {
		if err := b.scene(frame, geometry, scale); err != nil {
			return err
		}

		if err := b.drawCursor(dev, frame, geometry, scale); err != nil {
			return err
		}

		surface.fps.Tick()
		return nil
	})
	if err != nil {
		return err
	}

	return surface.swapchain.QueueBuffer()
}

// A blanking render right after surface creation, so the first queued
// buffer is valid before normal frames start. Retries itself as a deferred
// task on temporary failure
func (b *Backend) scheduleInitialRender(devID uint64, crtc uint32) {
	dev, ok := b.devices[devID]
	if !ok {
		return
	}
	surface, ok := dev.surfaces[crtc]
	if !ok {
		return
	}

	err := initialRender(dev.rend, surface.swapchain)
	if err == nil {
		return
	}
	if errors.Is(err, renderer.ErrAlreadySwapped) {
		return
	}
	var lost *renderer.ContextLostError
	if errors.As(err, &lost) {
		b.fatalf("Rendering loop lost: %v", err)
		return
	}
	logrus.WithError(err).WithFields(logrus.Fields{
		"device": devID,
		"crtc":   crtc,
	}).Warnln("Failed to submit page_flip")
	b.loop.Idle(func() { b.scheduleInitialRender(devID, crtc) })
}

func initialRender(rend renderer.Renderer, sc renderer.Swapchain) error {
	buf, err := sc.NextBuffer()
	if err != nil {
		return err
	}
	if err := rend.Bind(buf); err != nil {
		return err
	}
	// Doesn't matter that the frame is empty, it only has to be queueable
	err = rend.Render(generaldata.Vector2i{X: 1, Y: 1}, generaldata.TransformNormal, func(frame renderer.Frame) error {
		return frame.Clear(0.8, 0.8, 0.9, 1.0)
	})
	if err != nil {
		return err
	}
	return sc.QueueBuffer()
}
