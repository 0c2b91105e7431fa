// Pure Go wrapper around the kernel mode-setting interface of a DRM device.
// Structs and ioctl numbers follow include/uapi/drm/drm_mode.h
package drm

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl numbers we use. Keep them in kernel header order
var (
	ioctlSetMaster         = io(0x1e)
	ioctlDropMaster        = io(0x1f)
	ioctlGetCap            = ioWR(0x0c, unsafe.Sizeof(capArg{}))
	ioctlModeGetResources  = ioWR(0xa0, unsafe.Sizeof(modeCardRes{}))
	ioctlModeGetCrtc       = ioWR(0xa1, unsafe.Sizeof(modeCrtc{}))
	ioctlModeSetCrtc       = ioWR(0xa2, unsafe.Sizeof(modeCrtc{}))
	ioctlModeGetEncoder    = ioWR(0xa6, unsafe.Sizeof(modeGetEncoder{}))
	ioctlModeGetConnector  = ioWR(0xa7, unsafe.Sizeof(modeGetConnector{}))
	ioctlModeRmFB          = ioWR(0xaf, unsafe.Sizeof(uint32(0)))
	ioctlModeCrtcPageFlip  = ioWR(0xb0, unsafe.Sizeof(modeCrtcPageFlip{}))
	ioctlModeAddFB2        = ioWR(0xb8, unsafe.Sizeof(modeFBCmd2{}))
)

const (
	// Capability ids for GetCap
	CapDumbBuffer         = 0x1
	CapTimestampMonotonic = 0x6
	CapCursorWidth        = 0x8
	CapCursorHeight       = 0x9
)

type capArg struct {
	id  uint64
	val uint64
}

// An open DRM device node. The file descriptor is owned by whoever opened the
// node (normally the session), the Card only borrows it
type Card struct {
	fd   uintptr
	path string
	// Kernel device number of the node, stable across reopen
	devID uint64
}

// Wraps an already-open device file descriptor. The path is only kept for
// diagnostics and primary-GPU comparison
func NewCard(fd uintptr, path string) (*Card, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(int(fd), &stat); err != nil {
		return nil, fmt.Errorf("stat drm node %s: %w", path, err)
	}
	return &Card{fd: fd, path: path, devID: uint64(stat.Rdev)}, nil
}

// Opens the card node directly. Only used by tool mode, the compositor itself
// always goes through the session
func OpenCard(path string) (*Card, *os.File, error) {
	f, err := os.OpenFile(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, nil, err
	}
	card, err := NewCard(f.Fd(), path)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return card, f, nil
}

func (c *Card) Fd() uintptr { return c.fd }

func (c *Card) Path() string { return c.path }

// Kernel device number, used as the stable device id everywhere
func (c *Card) DeviceID() uint64 { return c.devID }

// Canonical path of the node, for primary-GPU comparison
func (c *Card) CanonicalPath() string {
	if resolved, err := filepath.EvalSymlinks(c.path); err == nil {
		return resolved
	}
	return c.path
}

func (c *Card) SetMaster() error {
	return ioctl(c.fd, ioctlSetMaster, nil)
}

func (c *Card) DropMaster() error {
	return ioctl(c.fd, ioctlDropMaster, nil)
}

func (c *Card) GetCap(id uint64) (uint64, error) {
	arg := capArg{id: id}
	if err := ioctl(c.fd, ioctlGetCap, unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.val, nil
}
