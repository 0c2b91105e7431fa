package backend

import (
	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/renderer"
	"github.com/mstarongithub/way2kms/session"
)

// One active CRTC: its swapchain plus a frame-rate counter. Identified by
// (device id, crtc); exists exactly as long as its device reports a live
// connector assignment for it and is never shared across devices
type Surface struct {
	id        surfaceID
	swapchain renderer.Swapchain
	fps       FpsCounter

	connector uint32
	mode      generaldata.Mode

	// CRTC state found when we claimed the pipe, restored on teardown
	saved *savedCrtc

	// Pause/resume bookkeeping subscription, dropped with the surface
	signalToken session.SignalToken
}

// The (device id, crtc handle) identity of a surface
type surfaceID struct {
	Device uint64
	Crtc   uint32
}

type savedCrtc struct {
	restore func()
}

func newSurface(devID uint64, crtc uint32, connector uint32, mode generaldata.Mode, sc renderer.Swapchain) *Surface {
	return &Surface{
		id:        surfaceID{Device: devID, Crtc: crtc},
		swapchain: sc,
		connector: connector,
		mode:      mode,
	}
}

// Subscribes the surface's swapchain to device pause/resume signals
func (s *Surface) link(signaler *session.Signaler) {
	devID := s.id.Device
	s.signalToken = signaler.Register(func(sig session.Signal) {
		switch sig := sig.(type) {
		case session.PauseDevice:
			if sig.DeviceID == devID {
				s.swapchain.Suspend()
			}
		case session.PauseSession:
			s.swapchain.Suspend()
		case session.ActivateDevice:
			if sig.DeviceID == devID {
				s.swapchain.Resume()
			}
		case session.ActivateSession:
			s.swapchain.Resume()
		}
	})
}

func (s *Surface) destroy(signaler *session.Signaler) {
	signaler.Unregister(s.signalToken)
	s.swapchain.Destroy()
	if s.saved != nil && s.saved.restore != nil {
		s.saved.restore()
	}
}

// Rolling average frames per second over the observation window
func (s *Surface) Fps() float64 {
	return s.fps.Avg()
}
