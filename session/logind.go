package session

import (
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	login1Dest        = "org.freedesktop.login1"
	login1ManagerPath = dbus.ObjectPath("/org/freedesktop/login1")
	login1ManagerIfc  = "org.freedesktop.login1.Manager"
	login1SessionIfc  = "org.freedesktop.login1.Session"
	login1SeatIfc     = "org.freedesktop.login1.Seat"
	propertiesIfc     = "org.freedesktop.DBus.Properties"
)

// Session backed by systemd-logind over the system bus. Devices are taken
// with TakeDevice so the kernel revokes and restores access for us on VT
// switches; logind tells us about it with PauseDevice/ResumeDevice signals
type LogindSession struct {
	conn        *dbus.Conn
	sessionObj  dbus.BusObject
	seatObj     dbus.BusObject
	sessionPath dbus.ObjectPath
	seat        string

	signaler *Signaler
	// Runs a callback on the compositor event loop. D-Bus signals arrive on
	// their own goroutine and must never touch loop state directly
	post func(func())

	mu sync.Mutex
	// fd -> device number for ReleaseDevice on close
	devices map[int]uint64
	active  bool

	signals chan *dbus.Signal
	done    chan struct{}
}

// Connects to logind, takes control of the current session and starts
// listening for session transitions. post is invoked from the D-Bus
// goroutine with callbacks that must run on the event loop
func NewLogindSession(post func(func())) (*LogindSession, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	manager := conn.Object(login1Dest, login1ManagerPath)

	var sessionPath dbus.ObjectPath
	// "auto" picks the caller's session on newer logind, fall back to
	// looking it up by pid
	if err := manager.Call(login1ManagerIfc+".GetSession", 0, "auto").Store(&sessionPath); err != nil {
		if err := manager.Call(login1ManagerIfc+".GetSessionByPID", 0, uint32(os.Getpid())).Store(&sessionPath); err != nil {
			return nil, fmt.Errorf("locate logind session: %w", err)
		}
	}

	s := &LogindSession{
		conn:        conn,
		sessionObj:  conn.Object(login1Dest, sessionPath),
		sessionPath: sessionPath,
		signaler:    NewSignaler(),
		post:        post,
		devices:     make(map[int]uint64),
		active:      true,
		signals:     make(chan *dbus.Signal, 16),
		done:        make(chan struct{}),
	}

	var seat struct {
		ID   string
		Path dbus.ObjectPath
	}
	if err := s.sessionObj.Call(propertiesIfc+".Get", 0, login1SessionIfc, "Seat").Store(&seat); err != nil {
		return nil, fmt.Errorf("query seat: %w", err)
	}
	s.seat = seat.ID
	s.seatObj = conn.Object(login1Dest, seat.Path)

	if err := s.sessionObj.Call(login1SessionIfc+".TakeControl", 0, false).Err; err != nil {
		return nil, fmt.Errorf("take session control: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(sessionPath),
		dbus.WithMatchInterface(login1SessionIfc),
	); err != nil {
		return nil, fmt.Errorf("subscribe session signals: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(sessionPath),
		dbus.WithMatchInterface(propertiesIfc),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return nil, fmt.Errorf("subscribe property changes: %w", err)
	}

	conn.Signal(s.signals)
	go s.pump()

	logrus.WithFields(logrus.Fields{
		"session": string(sessionPath),
		"seat":    s.seat,
	}).Infoln("Took control of logind session")
	return s, nil
}

func (s *LogindSession) Signaler() *Signaler { return s.signaler }

func (s *LogindSession) Seat() string { return s.seat }

func (s *LogindSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *LogindSession) OpenDevice(path string) (int, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		return -1, fmt.Errorf("stat %s: %w", path, err)
	}
	major := unix.Major(uint64(stat.Rdev))
	minor := unix.Minor(uint64(stat.Rdev))

	var fd dbus.UnixFD
	var paused bool
	if err := s.sessionObj.Call(login1SessionIfc+".TakeDevice", 0, major, minor).Store(&fd, &paused); err != nil {
		return -1, fmt.Errorf("take device %s: %w", path, err)
	}

	// logind hands us a blocking fd with no close-on-exec
	unix.CloseOnExec(int(fd))
	if err := unix.SetNonblock(int(fd), true); err != nil {
		s.releaseDevice(major, minor)
		unix.Close(int(fd))
		return -1, fmt.Errorf("set %s non-blocking: %w", path, err)
	}

	s.mu.Lock()
	s.devices[int(fd)] = uint64(stat.Rdev)
	s.mu.Unlock()
	return int(fd), nil
}

func (s *LogindSession) CloseDevice(fd int) error {
	s.mu.Lock()
	rdev, ok := s.devices[fd]
	delete(s.devices, fd)
	s.mu.Unlock()
	if ok {
		s.releaseDevice(unix.Major(rdev), unix.Minor(rdev))
	}
	return unix.Close(fd)
}

func (s *LogindSession) releaseDevice(major, minor uint32) {
	if err := s.sessionObj.Call(login1SessionIfc+".ReleaseDevice", 0, major, minor).Err; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"major": major,
			"minor": minor,
		}).Warnln("Failed to release device")
	}
}

func (s *LogindSession) SwitchVT(vt int) error {
	if err := s.seatObj.Call(login1SeatIfc+".SwitchTo", 0, uint32(vt)).Err; err != nil {
		return fmt.Errorf("switch to vt %d: %w", vt, err)
	}
	return nil
}

func (s *LogindSession) Close() error {
	close(s.done)
	s.conn.RemoveSignal(s.signals)
	err := s.sessionObj.Call(login1SessionIfc+".ReleaseControl", 0).Err
	return err
}

// Runs on its own goroutine, translating D-Bus signals into session signals
// emitted on the event loop
func (s *LogindSession) pump() {
	for {
		select {
		case <-s.done:
			return
		case sig, ok := <-s.signals:
			if !ok {
				return
			}
			s.handleDBusSignal(sig)
		}
	}
}

func (s *LogindSession) handleDBusSignal(sig *dbus.Signal) {
	switch sig.Name {
	case login1SessionIfc + ".PauseDevice":
		if len(sig.Body) < 3 {
			return
		}
		major, _ := sig.Body[0].(uint32)
		minor, _ := sig.Body[1].(uint32)
		kind, _ := sig.Body[2].(string)
		devID := unix.Mkdev(major, minor)

		// "pause" wants an explicit ack or logind force-revokes after a
		// grace period
		if kind == "pause" {
			if err := s.sessionObj.Call(login1SessionIfc+".PauseDeviceComplete", 0, major, minor).Err; err != nil {
				logrus.WithError(err).Warnln("Failed to ack device pause")
			}
		}
		s.post(func() {
			s.signaler.Emit(PauseDevice{DeviceID: devID, Gone: kind == "gone"})
		})
	case login1SessionIfc + ".ResumeDevice":
		if len(sig.Body) < 2 {
			return
		}
		major, _ := sig.Body[0].(uint32)
		minor, _ := sig.Body[1].(uint32)
		devID := unix.Mkdev(major, minor)
		// Body[2] carries a replacement fd. DRM master fds survive the
		// pause, so it is only relevant for evdev devices, which are not
		// opened through this session
		if len(sig.Body) > 2 {
			if fd, ok := sig.Body[2].(dbus.UnixFD); ok {
				unix.Close(int(fd))
			}
		}
		s.post(func() {
			s.signaler.Emit(ActivateDevice{DeviceID: devID})
		})
	case propertiesIfc + ".PropertiesChanged":
		if len(sig.Body) < 2 {
			return
		}
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		v, ok := changed["Active"]
		if !ok {
			return
		}
		active, _ := v.Value().(bool)
		s.mu.Lock()
		s.active = active
		s.mu.Unlock()
		s.post(func() {
			if active {
				s.signaler.Emit(ActivateSession{})
			} else {
				s.signaler.Emit(PauseSession{})
			}
		})
	}
}
