package generaldata

import "testing"

func TestVectorArithmetic(t *testing.T) {
	a := Vector2i{X: 3, Y: -2}
	b := Vector2i{X: 1, Y: 5}
	if a.Add(b) != (Vector2i{X: 4, Y: 3}) {
		t.Errorf("add: %v", a.Add(b))
	}
	if a.Sub(b) != (Vector2i{X: 2, Y: -7}) {
		t.Errorf("sub: %v", a.Sub(b))
	}
}

// Left and top edges are inside, right and bottom edges are not
func TestRectContains(t *testing.T) {
	r := Rect{Loc: Vector2i{X: 10, Y: 20}, Size: Vector2i{X: 100, Y: 50}}

	if !r.Contains(10, 20) {
		t.Errorf("top-left corner excluded")
	}
	if r.Contains(110, 20) {
		t.Errorf("right edge included")
	}
	if r.Contains(10, 70) {
		t.Errorf("bottom edge included")
	}
	if !r.Contains(109.9, 69.9) {
		t.Errorf("interior point excluded")
	}
	if !r.ContainsPoint(Vector2i{X: 50, Y: 40}) {
		t.Errorf("interior point excluded via ContainsPoint")
	}
}
