package drm

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl encoding, see include/uapi/asm-generic/ioctl.h
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

const drmIoctlBase = 'd'

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<iocDirShift | size<<iocSizeShift | drmIoctlBase<<iocTypeShift | nr<<iocNrShift
}

func ioWR(nr, size uintptr) uintptr {
	return ioc(iocRead|iocWrite, nr, size)
}

func io(nr uintptr) uintptr {
	return ioc(iocNone, nr, 0)
}

// Issues the ioctl, retrying while the kernel asks for it. DRM mode-setting
// calls return EAGAIN when the device is in the middle of a probe
func ioctl(fd uintptr, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
		if errno == 0 {
			return nil
		}
		if errno == unix.EINTR || errno == unix.EAGAIN {
			continue
		}
		return errno
	}
}
