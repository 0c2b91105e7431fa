package hotplug

import (
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Fallback source watching /dev/dri directly. Sees card nodes appear and
// disappear but not connector reconfiguration, so "changed" events are lost
// on this path
func (m *Monitor) startFsnotify() (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add("/dev/dri"); err != nil {
		watcher.Close()
		return nil, err
	}
	logrus.Warnln("uevent socket unavailable, falling back to watching /dev/dri (no change events)")

	// Removed nodes can't be stat'ed anymore, so remember their device ids
	var mu sync.Mutex
	known := make(map[string]uint64)

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				base := filepath.Base(ev.Name)
				if !strings.HasPrefix(base, "card") {
					continue
				}
				if _, err := strconv.Atoi(base[len("card"):]); err != nil {
					continue
				}
				switch {
				case ev.Op.Has(fsnotify.Create):
					var stat unix.Stat_t
					if err := unix.Stat(ev.Name, &stat); err != nil {
						continue
					}
					mu.Lock()
					known[ev.Name] = uint64(stat.Rdev)
					mu.Unlock()
					if m.merge.Send(Added{DeviceID: uint64(stat.Rdev), Path: ev.Name}) != nil {
						return
					}
				case ev.Op.Has(fsnotify.Remove):
					mu.Lock()
					devID, ok := known[ev.Name]
					delete(known, ev.Name)
					mu.Unlock()
					if !ok {
						continue
					}
					if m.merge.Send(Removed{DeviceID: devID}) != nil {
						return
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logrus.WithError(err).Warnln("Device directory watch error")
			}
		}
	}()
	return func() { watcher.Close() }, nil
}
