// GPU hotplug monitoring. The primary source is the kernel's kobject uevent
// netlink socket, the same thing udev listens on; when that is unavailable
// (containers, restricted namespaces) a watch on /dev/dri catches at least
// add and remove
package hotplug

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/mstarongithub/way2kms/util/multiplexer"
)

// A hotplug event for one DRM card node
type Event interface {
	eventSealed()
}

type Added struct {
	DeviceID uint64
	Path     string
}

func (Added) eventSealed() {}

type Changed struct {
	DeviceID uint64
}

func (Changed) eventSealed() {}

type Removed struct {
	DeviceID uint64
}

func (Removed) eventSealed() {}

// Watches for DRM devices coming, going and reconfiguring
type Monitor struct {
	events chan Event
	merge  *multiplexer.ManyToOne[Event]
	stop   func()
}

// Starts a monitor, preferring the uevent socket
func NewMonitor() (*Monitor, error) {
	events := make(chan Event, 16)
	m := &Monitor{
		events: events,
		merge:  multiplexer.NewManyToOne(events),
	}

	stop, err := m.startUevent()
	if err != nil {
		stopFallback, ferr := m.startFsnotify()
		if ferr != nil {
			return nil, fmt.Errorf("uevent monitor: %v, fsnotify fallback: %w", err, ferr)
		}
		stop = stopFallback
	}
	m.stop = stop
	return m, nil
}

// Stream of hotplug events. Closed by Close
func (m *Monitor) Events() <-chan Event {
	return m.events
}

func (m *Monitor) Close() {
	if m.stop != nil {
		m.stop()
	}
	m.merge.Close()
}

// Lists the card nodes already present at startup, in stable order
func ScanCards() ([]Added, error) {
	paths, err := filepath.Glob("/dev/dri/card*")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var cards []Added
	for _, path := range paths {
		// Skip render nodes and anything that isn't cardN
		base := filepath.Base(path)
		if _, err := strconv.Atoi(base[len("card"):]); err != nil {
			continue
		}
		var stat unix.Stat_t
		if err := unix.Stat(path, &stat); err != nil {
			continue
		}
		cards = append(cards, Added{DeviceID: uint64(stat.Rdev), Path: path})
	}
	return cards, nil
}

// Best-effort guess at the boot GPU: the card whose PCI device has boot_vga
// set, else the first card. Returns the canonical device path
func PrimaryGPU() string {
	paths, _ := filepath.Glob("/dev/dri/card*")
	sort.Strings(paths)

	for _, path := range paths {
		vga := filepath.Join("/sys/class/drm", filepath.Base(path), "device", "boot_vga")
		data, err := os.ReadFile(vga)
		if err == nil && len(data) > 0 && data[0] == '1' {
			return canonical(path)
		}
	}
	if len(paths) > 0 {
		return canonical(paths[0])
	}
	return ""
}

func canonical(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
