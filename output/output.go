// Logical monitors and their arrangement in the shared coordinate space
package output

import (
	"math"

	generaldata "github.com/mstarongithub/way2kms/general-data"
)

// Backward link tagging which device/CRTC pair realizes an output. Only ever
// compared by value, never treated as ownership
type KmsTag struct {
	DeviceID uint64
	Crtc     uint32
}

// Physical properties of the monitor behind an output. Sizes are in
// millimeters and may be zero when the display doesn't report them
type PhysicalProperties struct {
	SizeMm generaldata.Vector2i
	Make   string
	Model  string
}

// A logical monitor. Owned exclusively by the Map it was added to
type Output struct {
	name     string
	physical PhysicalProperties
	mode     generaldata.Mode
	scale    float64
	location generaldata.Vector2i
	tag      KmsTag

	layers LayerMap

	// Pushes state changes through to the compositor-visible output object.
	// May be nil in tests and tool mode
	onState func(*Output)
}

func New(name string, physical PhysicalProperties, mode generaldata.Mode, tag KmsTag) *Output {
	return &Output{
		name:     name,
		physical: physical,
		mode:     mode,
		scale:    1.0,
		tag:      tag,
	}
}

// Installs the push-through hook for compositor-visible state. Fired once
// immediately so the protocol side starts out in sync
func (o *Output) SetStateListener(cb func(*Output)) {
	o.onState = cb
	o.notify()
}

func (o *Output) notify() {
	if o.onState != nil {
		o.onState(o)
	}
}

func (o *Output) Name() string { return o.name }

func (o *Output) Physical() PhysicalProperties { return o.physical }

func (o *Output) Tag() KmsTag { return o.tag }

func (o *Output) Location() generaldata.Vector2i { return o.location }

func (o *Output) SetLocation(loc generaldata.Vector2i) {
	o.location = loc
	o.notify()
}

func (o *Output) CurrentMode() generaldata.Mode { return o.mode }

func (o *Output) Scale() float64 { return o.scale }

// Logical size: the pixel size of the current mode divided by the scale
func (o *Output) Size() generaldata.Vector2i {
	return generaldata.Vector2i{
		X: int(math.Round(float64(o.mode.Size.X) / o.scale)),
		Y: int(math.Round(float64(o.mode.Size.Y) / o.scale)),
	}
}

func (o *Output) Geometry() generaldata.Rect {
	return generaldata.Rect{Loc: o.location, Size: o.Size()}
}

// Geometry minus the exclusive zones claimed by docked layer surfaces
func (o *Output) UsableGeometry() generaldata.Rect {
	ret := o.Geometry()
	zone := o.layers.ExclusiveZone()

	ret.Loc.X += zone.Left
	ret.Size.X -= zone.Left + zone.Right
	ret.Loc.Y += zone.Top
	ret.Size.Y -= zone.Top + zone.Bottom
	return ret
}

func (o *Output) UpdateMode(mode generaldata.Mode) {
	o.mode = mode
	o.notify()
}

// Full no-op when the rounded integer scale doesn't change. Storing a
// fractional change without notifying would shift Size/Geometry behind the
// compositor's back
func (o *Output) UpdateScale(scale float64) {
	if int(math.Round(o.scale)) == int(math.Round(scale)) {
		return
	}
	o.scale = scale
	o.notify()
}

func (o *Output) Layers() *LayerMap { return &o.layers }

// Lets every layer surface on this output start its next frame
func (o *Output) SendFrame(timeMs uint32) {
	o.layers.SendFrames(timeMs)
}
