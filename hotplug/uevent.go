package hotplug

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Group 1 is where the kernel broadcasts uevents
const ueventGroupKernel = 1

func (m *Monitor) startUevent() (func(), error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, err
	}
	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: ueventGroupKernel,
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, err
	}

	go m.ueventReader(fd)
	return func() { unix.Close(fd) }, nil
}

func (m *Monitor) ueventReader(fd int) {
	buf := make([]byte, 8192)
	for {
		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			// Closed on teardown
			return
		}
		ev, ok := parseUevent(buf[:n])
		if !ok {
			continue
		}
		if err := m.merge.Send(ev); err != nil {
			return
		}
	}
}

// A kernel uevent is "action@devpath\0" followed by KEY=VALUE pairs.
// We only care about DRM card minors
func parseUevent(raw []byte) (Event, bool) {
	fields := bytes.Split(raw, []byte{0})
	if len(fields) == 0 {
		return nil, false
	}
	header := string(fields[0])
	action, _, ok := strings.Cut(header, "@")
	if !ok {
		return nil, false
	}

	props := make(map[string]string, len(fields))
	for _, f := range fields[1:] {
		if key, val, ok := strings.Cut(string(f), "="); ok {
			props[key] = val
		}
	}

	if props["SUBSYSTEM"] != "drm" {
		return nil, false
	}
	devname := props["DEVNAME"]
	if !strings.HasPrefix(devname, "dri/card") {
		return nil, false
	}
	major, err1 := strconv.ParseUint(props["MAJOR"], 10, 32)
	minor, err2 := strconv.ParseUint(props["MINOR"], 10, 32)
	if err1 != nil || err2 != nil {
		return nil, false
	}
	devID := unix.Mkdev(uint32(major), uint32(minor))

	switch action {
	case "add":
		return Added{DeviceID: devID, Path: "/dev/" + devname}, true
	case "change":
		return Changed{DeviceID: devID}, true
	case "remove":
		return Removed{DeviceID: devID}, true
	default:
		logrus.WithFields(logrus.Fields{
			"action":  action,
			"devname": devname,
		}).Debugln("Ignoring uevent action")
		return nil, false
	}
}
