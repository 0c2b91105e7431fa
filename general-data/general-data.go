// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package generaldata

// A point or size in the logical coordinate space shared by all outputs
type Vector2i struct {
	X int
	Y int
}

func (v Vector2i) Add(other Vector2i) Vector2i {
	return Vector2i{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vector2i) Sub(other Vector2i) Vector2i {
	return Vector2i{X: v.X - other.X, Y: v.Y - other.Y}
}

// A rectangle in logical space. Loc is the top-left corner
type Rect struct {
	Loc  Vector2i
	Size Vector2i
}

// Whether the point is inside the rectangle. Edges on the left and top count
// as inside, edges on the right and bottom don't
func (r Rect) Contains(x, y float64) bool {
	return x >= float64(r.Loc.X) && x < float64(r.Loc.X+r.Size.X) &&
		y >= float64(r.Loc.Y) && y < float64(r.Loc.Y+r.Size.Y)
}

func (r Rect) ContainsPoint(p Vector2i) bool {
	return r.Contains(float64(p.X), float64(p.Y))
}

// A display mode: pixel size plus refresh rate in millihertz
type Mode struct {
	Size    Vector2i
	Refresh int
}

// Rotation/flip applied when drawing into a buffer
type Transform int

const (
	TransformNormal = Transform(iota)
	// Scanout buffers are stored upside down, so most frames get this one
	TransformFlipped180
)
