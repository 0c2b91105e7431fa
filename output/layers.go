package output

import (
	generaldata "github.com/mstarongithub/way2kms/general-data"
)

// Edge a layer surface docks to
type Edge int

const (
	EdgeTop = Edge(iota)
	EdgeBottom
	EdgeLeft
	EdgeRight
)

// Space around the usable area claimed by docked surfaces
type Insets struct {
	Top, Bottom, Left, Right int
}

// A client surface docked to one edge of an output (a bar, a dock). The
// shell layer hands these to us pre-sorted; we only keep them placed and
// notified
type LayerSurface struct {
	Edge Edge
	// Extent along the docking edge's normal, in logical pixels
	Thickness int
	// How much of that extent other surfaces must keep clear. Zero for
	// overlay-style surfaces
	ExclusiveZone int
	// Computed placement, updated by Arrange
	Geometry generaldata.Rect
	// Frame-done delivery. May be nil
	OnFrame func(timeMs uint32)
	// Liveness check; dead surfaces are dropped on Refresh. May be nil
	Alive func() bool
}

// The drawable layer stack of one output
type LayerMap struct {
	layers    []*LayerSurface
	exclusive Insets
}

func (lm *LayerMap) Insert(layer *LayerSurface) {
	lm.layers = append(lm.layers, layer)
}

func (lm *LayerMap) Remove(layer *LayerSurface) {
	for i, l := range lm.layers {
		if l == layer {
			lm.layers = append(lm.layers[:i], lm.layers[i+1:]...)
			return
		}
	}
}

func (lm *LayerMap) Layers() []*LayerSurface { return lm.layers }

func (lm *LayerMap) ExclusiveZone() Insets { return lm.exclusive }

// Places every layer along its edge of geometry and recomputes the
// exclusive zone insets
func (lm *LayerMap) Arrange(geometry generaldata.Rect) {
	lm.exclusive = Insets{}
	for _, layer := range lm.layers {
		switch layer.Edge {
		case EdgeTop:
			layer.Geometry = generaldata.Rect{
				Loc:  generaldata.Vector2i{X: geometry.Loc.X, Y: geometry.Loc.Y + lm.exclusive.Top},
				Size: generaldata.Vector2i{X: geometry.Size.X, Y: layer.Thickness},
			}
			lm.exclusive.Top += layer.ExclusiveZone
		case EdgeBottom:
			layer.Geometry = generaldata.Rect{
				Loc: generaldata.Vector2i{
					X: geometry.Loc.X,
					Y: geometry.Loc.Y + geometry.Size.Y - layer.Thickness - lm.exclusive.Bottom,
				},
				Size: generaldata.Vector2i{X: geometry.Size.X, Y: layer.Thickness},
			}
			lm.exclusive.Bottom += layer.ExclusiveZone
		case EdgeLeft:
			layer.Geometry = generaldata.Rect{
				Loc:  generaldata.Vector2i{X: geometry.Loc.X + lm.exclusive.Left, Y: geometry.Loc.Y},
				Size: generaldata.Vector2i{X: layer.Thickness, Y: geometry.Size.Y},
			}
			lm.exclusive.Left += layer.ExclusiveZone
		case EdgeRight:
			layer.Geometry = generaldata.Rect{
				Loc: generaldata.Vector2i{
					X: geometry.Loc.X + geometry.Size.X - layer.Thickness - lm.exclusive.Right,
					Y: geometry.Loc.Y,
				},
				Size: generaldata.Vector2i{X: layer.Thickness, Y: geometry.Size.Y},
			}
			lm.exclusive.Right += layer.ExclusiveZone
		}
	}
}

// Drops layers whose backing surface died
func (lm *LayerMap) Refresh() {
	kept := lm.layers[:0]
	for _, layer := range lm.layers {
		if layer.Alive == nil || layer.Alive() {
			kept = append(kept, layer)
		}
	}
	lm.layers = kept
}

func (lm *LayerMap) SendFrames(timeMs uint32) {
	for _, layer := range lm.layers {
		if layer.OnFrame != nil {
			layer.OnFrame(timeMs)
		}
	}
}
