package hotplug

import (
	"testing"

	"golang.org/x/sys/unix"
)

func rawUevent(header string, props ...string) []byte {
	out := []byte(header)
	for _, p := range props {
		out = append(out, 0)
		out = append(out, p...)
	}
	return out
}

func TestParseUeventAdd(t *testing.T) {
	raw := rawUevent(
		"add@/devices/pci0000:00/0000:00:02.0/drm/card1",
		"ACTION=add",
		"SUBSYSTEM=drm",
		"DEVNAME=dri/card1",
		"MAJOR=226",
		"MINOR=1",
	)
	ev, ok := parseUevent(raw)
	if !ok {
		t.Fatalf("add event not recognized")
	}
	added, ok := ev.(Added)
	if !ok {
		t.Fatalf("parsed as %T, want Added", ev)
	}
	if added.Path != "/dev/dri/card1" {
		t.Errorf("path %q", added.Path)
	}
	if added.DeviceID != unix.Mkdev(226, 1) {
		t.Errorf("device id %d", added.DeviceID)
	}
}

func TestParseUeventChangeAndRemove(t *testing.T) {
	change := rawUevent(
		"change@/devices/pci0000:00/0000:00:02.0/drm/card0",
		"SUBSYSTEM=drm", "DEVNAME=dri/card0", "MAJOR=226", "MINOR=0",
	)
	ev, ok := parseUevent(change)
	if !ok {
		t.Fatalf("change event not recognized")
	}
	if _, ok := ev.(Changed); !ok {
		t.Errorf("parsed as %T, want Changed", ev)
	}

	remove := rawUevent(
		"remove@/devices/pci0000:00/0000:00:02.0/drm/card0",
		"SUBSYSTEM=drm", "DEVNAME=dri/card0", "MAJOR=226", "MINOR=0",
	)
	ev, ok = parseUevent(remove)
	if !ok {
		t.Fatalf("remove event not recognized")
	}
	if _, ok := ev.(Removed); !ok {
		t.Errorf("parsed as %T, want Removed", ev)
	}
}

// Non-drm subsystems and non-card nodes (renderD128, connector sysfs
// children) are ignored
func TestParseUeventFiltersForeignEvents(t *testing.T) {
	cases := [][]byte{
		rawUevent("add@/devices/x", "SUBSYSTEM=usb", "DEVNAME=bus/usb/001/002", "MAJOR=189", "MINOR=1"),
		rawUevent("add@/devices/x/drm/renderD128", "SUBSYSTEM=drm", "DEVNAME=dri/renderD128", "MAJOR=226", "MINOR=128"),
		rawUevent("change@/devices/x/drm/card0/card0-HDMI-A-1", "SUBSYSTEM=drm"),
		rawUevent("garbage without an at sign", "SUBSYSTEM=drm"),
		{},
	}
	for i, raw := range cases {
		if ev, ok := parseUevent(raw); ok {
			t.Errorf("case %d accepted as %T", i, ev)
		}
	}
}
