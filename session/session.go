// Privileged session handling: exclusive hardware access granted by the OS,
// revocable at any time (VT switch). Device nodes are opened through the
// session so that revocation and restoration are handled for us
package session

// A privileged session owning one seat and its virtual terminal
type Session interface {
	// Opens a device node with read/write access, non-blocking, without
	// making it the controlling terminal. The returned fd stays valid
	// across pause/resume of the session
	OpenDevice(path string) (int, error)
	// Releases a device previously opened with OpenDevice
	CloseDevice(fd int) error
	// Whether the session currently owns the VT
	Active() bool
	// Requests a switch to another virtual terminal
	SwitchVT(vt int) error
	// Seat name, e.g. "seat0"
	Seat() string
	// Bus session transitions are published on
	Signaler() *Signaler
	Close() error
}
