package output

import (
	"testing"

	generaldata "github.com/mstarongithub/way2kms/general-data"
)

// Logical size is the mode size divided by the scale
func TestOutputSizeWithScale(t *testing.T) {
	o := testOutput("eDP-1", 2560, 1600, KmsTag{DeviceID: 1, Crtc: 1})
	if o.Size() != (generaldata.Vector2i{X: 2560, Y: 1600}) {
		t.Errorf("size at scale 1 is %v", o.Size())
	}

	o.UpdateScale(2.0)
	if o.Size() != (generaldata.Vector2i{X: 1280, Y: 800}) {
		t.Errorf("size at scale 2 is %v", o.Size())
	}
}

// State listeners fire immediately on install and on real changes, but not
// when only the fractional part of the scale moves
func TestOutputStateListener(t *testing.T) {
	o := testOutput("eDP-1", 1920, 1080, KmsTag{DeviceID: 1, Crtc: 1})

	fired := 0
	o.SetStateListener(func(*Output) { fired++ })
	if fired != 1 {
		t.Fatalf("listener fired %d times on install, want 1", fired)
	}

	o.UpdateMode(generaldata.Mode{Size: generaldata.Vector2i{X: 1280, Y: 720}, Refresh: 60000})
	if fired != 2 {
		t.Errorf("listener fired %d times after mode update, want 2", fired)
	}

	// 1.0 -> 1.25 rounds to the same integer scale: nothing may change,
	// or geometry would shift without the listener hearing about it
	before := o.Geometry()
	o.UpdateScale(1.25)
	if fired != 2 {
		t.Errorf("listener fired on a sub-integer scale change")
	}
	if o.Scale() != 1.0 {
		t.Errorf("sub-integer scale was stored, got %v", o.Scale())
	}
	if o.Geometry() != before {
		t.Errorf("geometry changed silently: %v -> %v", before, o.Geometry())
	}

	o.UpdateScale(2.0)
	if fired != 3 {
		t.Errorf("listener did not fire on an integer scale change")
	}
}

// Docked layers with exclusive zones shrink the usable area
func TestOutputUsableGeometry(t *testing.T) {
	o := testOutput("HDMI-A-1", 1920, 1080, KmsTag{DeviceID: 1, Crtc: 1})

	bar := &LayerSurface{Edge: EdgeTop, Thickness: 30, ExclusiveZone: 30}
	dock := &LayerSurface{Edge: EdgeLeft, Thickness: 60, ExclusiveZone: 60}
	overlay := &LayerSurface{Edge: EdgeBottom, Thickness: 200}
	o.Layers().Insert(bar)
	o.Layers().Insert(dock)
	o.Layers().Insert(overlay)
	o.Layers().Arrange(o.Geometry())

	usable := o.UsableGeometry()
	want := generaldata.Rect{
		Loc:  generaldata.Vector2i{X: 60, Y: 30},
		Size: generaldata.Vector2i{X: 1920 - 60, Y: 1080 - 30},
	}
	if usable != want {
		t.Errorf("usable geometry %+v, want %+v", usable, want)
	}

	if bar.Geometry.Size != (generaldata.Vector2i{X: 1920, Y: 30}) {
		t.Errorf("bar geometry %+v", bar.Geometry)
	}
	if dock.Geometry.Loc != (generaldata.Vector2i{X: 0, Y: 0}) {
		t.Errorf("dock location %+v", dock.Geometry.Loc)
	}
}

// Dead layers disappear on Refresh, live ones stay
func TestLayerMapRefresh(t *testing.T) {
	var lm LayerMap
	alive := true
	l1 := &LayerSurface{Edge: EdgeTop, Alive: func() bool { return alive }}
	l2 := &LayerSurface{Edge: EdgeBottom}
	lm.Insert(l1)
	lm.Insert(l2)

	lm.Refresh()
	if len(lm.Layers()) != 2 {
		t.Fatalf("refresh dropped live layers")
	}

	alive = false
	lm.Refresh()
	if len(lm.Layers()) != 1 || lm.Layers()[0] != l2 {
		t.Errorf("dead layer not dropped")
	}
}

// Stacked exclusive zones on the same edge accumulate
func TestLayerMapStackedExclusiveZones(t *testing.T) {
	var lm LayerMap
	lm.Insert(&LayerSurface{Edge: EdgeTop, Thickness: 20, ExclusiveZone: 20})
	lm.Insert(&LayerSurface{Edge: EdgeTop, Thickness: 10, ExclusiveZone: 10})
	geometry := generaldata.Rect{Size: generaldata.Vector2i{X: 800, Y: 600}}
	lm.Arrange(geometry)

	if lm.ExclusiveZone().Top != 30 {
		t.Errorf("stacked top zone is %d, want 30", lm.ExclusiveZone().Top)
	}
	second := lm.Layers()[1]
	if second.Geometry.Loc.Y != 20 {
		t.Errorf("second bar at y=%d, want 20", second.Geometry.Loc.Y)
	}
}
