package drm

import "fmt"

// Mirror of struct drm_mode_modeinfo, 68 bytes on the wire
type ModeInfo struct {
	Clock                                         uint32
	Hdisplay, HsyncStart, HsyncEnd, Htotal, Hskew uint16
	Vdisplay, VsyncStart, VsyncEnd, Vtotal, Vscan uint16
	Vrefresh                                      uint32
	Flags                                         uint32
	Type                                          uint32
	NameRaw                                       [32]byte
}

func (m *ModeInfo) Name() string {
	for i, b := range m.NameRaw {
		if b == 0 {
			return string(m.NameRaw[:i])
		}
	}
	return string(m.NameRaw[:])
}

// Whether the kernel marked this the connector's preferred mode
func (m *ModeInfo) Preferred() bool {
	const modeTypePreferred = 1 << 3
	return m.Type&modeTypePreferred != 0
}

func (m *ModeInfo) String() string {
	return fmt.Sprintf("%dx%d@%d", m.Hdisplay, m.Vdisplay, m.Vrefresh)
}
