package drm

import (
	"fmt"
	"unsafe"
)

type modeGetConnector struct {
	encodersPtr     uint64
	modesPtr        uint64
	propsPtr        uint64
	propValuesPtr   uint64
	countModes      uint32
	countProps      uint32
	countEncoders   uint32
	encoderID       uint32
	connectorID     uint32
	connectorType   uint32
	connectorTypeID uint32
	connection      uint32
	mmWidth         uint32
	mmHeight        uint32
	subpixel        uint32
	pad             uint32
}

// Connection state of a connector
type ConnectionState uint32

const (
	Connected    = ConnectionState(1)
	Disconnected = ConnectionState(2)
	UnknownState = ConnectionState(3)
)

// Connector interface types, drm_mode.h DRM_MODE_CONNECTOR_*
type ConnectorType uint32

const (
	ConnectorUnknown = ConnectorType(iota)
	ConnectorVGA
	ConnectorDVII
	ConnectorDVID
	ConnectorDVIA
	ConnectorComposite
	ConnectorSVideo
	ConnectorLVDS
	ConnectorComponent
	Connector9PinDIN
	ConnectorDisplayPort
	ConnectorHDMIA
	ConnectorHDMIB
	ConnectorTV
	ConnectorEDP
	ConnectorVirtual
	ConnectorDSI
	ConnectorDPI
	ConnectorWriteback
)

// Short interface name as used for user-facing output names
func (t ConnectorType) String() string {
	switch t {
	case ConnectorVGA:
		return "VGA"
	case ConnectorDVII:
		return "DVI-I"
	case ConnectorDVID:
		return "DVI-D"
	case ConnectorDVIA:
		return "DVI-A"
	case ConnectorComposite:
		return "Composite"
	case ConnectorSVideo:
		return "S-VIDEO"
	case ConnectorLVDS:
		return "LVDS"
	case ConnectorComponent:
		return "Component"
	case Connector9PinDIN:
		return "DIN"
	case ConnectorDisplayPort:
		return "DP"
	case ConnectorHDMIA:
		return "HDMI-A"
	case ConnectorHDMIB:
		return "HDMI-B"
	case ConnectorTV:
		return "TV"
	case ConnectorEDP:
		return "eDP"
	case ConnectorVirtual:
		return "Virtual"
	case ConnectorDSI:
		return "DSI"
	case ConnectorDPI:
		return "DPI"
	case ConnectorWriteback:
		return "Writeback"
	default:
		return "Unknown"
	}
}

// Everything we need to know about one physical port
type Connector struct {
	ID     uint32
	Type   ConnectorType
	TypeID uint32
	State  ConnectionState
	// Physical size in millimeters, 0 when the display doesn't report one
	MmWidth  uint32
	MmHeight uint32
	// Currently attached encoder, 0 if none
	EncoderID uint32
	Encoders  []uint32
	Modes     []ModeInfo
}

// User-facing output name: interface short name plus instance index,
// e.g. "HDMI-A-1"
func (c *Connector) Name() string {
	return fmt.Sprintf("%s-%d", c.Type, c.TypeID)
}

// Fetches the state of one connector, forcing a fresh probe. Same two-call
// retry dance as GetResources since the mode list can change under us
func (c *Card) GetConnector(id uint32) (*Connector, error) {
	for {
		counts := modeGetConnector{connectorID: id}
		if err := ioctl(c.fd, ioctlModeGetConnector, unsafe.Pointer(&counts)); err != nil {
			return nil, fmt.Errorf("get connector %d counts: %w", id, err)
		}

		conn := &Connector{
			ID:       id,
			Encoders: make([]uint32, counts.countEncoders),
			Modes:    make([]ModeInfo, counts.countModes),
		}

		arg := modeGetConnector{
			connectorID:   id,
			countModes:    counts.countModes,
			countEncoders: counts.countEncoders,
		}
		if len(conn.Encoders) > 0 {
			arg.encodersPtr = uint64(uintptr(unsafe.Pointer(&conn.Encoders[0])))
		}
		if len(conn.Modes) > 0 {
			arg.modesPtr = uint64(uintptr(unsafe.Pointer(&conn.Modes[0])))
		}
		if err := ioctl(c.fd, ioctlModeGetConnector, unsafe.Pointer(&arg)); err != nil {
			return nil, fmt.Errorf("get connector %d: %w", id, err)
		}
		if arg.countModes > counts.countModes || arg.countEncoders > counts.countEncoders {
			continue
		}

		conn.Encoders = conn.Encoders[:arg.countEncoders]
		conn.Modes = conn.Modes[:arg.countModes]
		conn.Type = ConnectorType(arg.connectorType)
		conn.TypeID = arg.connectorTypeID
		conn.State = ConnectionState(arg.connection)
		conn.MmWidth = arg.mmWidth
		conn.MmHeight = arg.mmHeight
		conn.EncoderID = arg.encoderID
		return conn, nil
	}
}
