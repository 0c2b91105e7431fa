package output

import (
	generaldata "github.com/mstarongithub/way2kms/general-data"
)

// Target placement for one output, produced by an arrangement policy
type Placement struct {
	// Index into the output list handed to the policy
	Index    int
	Location generaldata.Vector2i
}

// Pluggable layout policy: receives the full output list, returns where each
// should go. Returning nothing workable means no relocation this round
type ArrangeFunc func(outputs []*Output) []Placement

// The default policy: all outputs in one row, left to right, tops aligned
func SideBySide(outputs []*Output) []Placement {
	placements := make([]Placement, 0, len(outputs))
	x := 0
	for i, o := range outputs {
		placements = append(placements, Placement{
			Index:    i,
			Location: generaldata.Vector2i{X: x, Y: 0},
		})
		x += o.Size().X
	}
	return placements
}

// Ordered collection of all outputs. Exclusively owns its members; nobody
// else keeps an Output beyond the duration of one operation
type Map struct {
	outputs []*Output
	arrange ArrangeFunc
}

func NewMap(arrange ArrangeFunc) *Map {
	if arrange == nil {
		arrange = SideBySide
	}
	return &Map{arrange: arrange}
}

// Recomputes the layout from the arrangement policy. Idempotent: calling it
// twice without a membership change yields the same locations
func (m *Map) Rearrange() {
	placements := m.arrange(m.outputs)
	for _, p := range placements {
		if p.Index < 0 || p.Index >= len(m.outputs) {
			continue
		}
		o := m.outputs[p.Index]
		o.SetLocation(p.Location)
		o.Layers().Arrange(o.Geometry())
	}
}

// Appends the output and recomputes the whole layout. Arrange runs even
// though only one output was appended since the policy may re-organize
// everything
func (m *Map) Add(o *Output) *Output {
	m.outputs = append(m.outputs, o)
	m.Rearrange()
	return m.outputs[len(m.outputs)-1]
}

// Drops every output the predicate rejects, then recomputes the layout
func (m *Map) Retain(keep func(*Output) bool) {
	kept := m.outputs[:0]
	for _, o := range m.outputs {
		if keep(o) {
			kept = append(kept, o)
		}
	}
	// Don't leak the dropped tail
	for i := len(kept); i < len(m.outputs); i++ {
		m.outputs[i] = nil
	}
	m.outputs = kept
	m.Rearrange()
}

// Total extent along the layout axis: the sum of member widths
func (m *Map) Width() int {
	w := 0
	for _, o := range m.outputs {
		w += o.Size().X
	}
	return w
}

// Height of whichever output covers the given x coordinate
func (m *Map) Height(x int) (int, bool) {
	for _, o := range m.outputs {
		geo := o.Geometry()
		if x >= geo.Loc.X && x < geo.Loc.X+geo.Size.X {
			return geo.Size.Y, true
		}
	}
	return 0, false
}

func (m *Map) Len() int { return len(m.outputs) }

func (m *Map) IsEmpty() bool { return len(m.outputs) == 0 }

func (m *Map) Find(pred func(*Output) bool) *Output {
	for _, o := range m.outputs {
		if pred(o) {
			return o
		}
	}
	return nil
}

func (m *Map) FindByName(name string) *Output {
	return m.Find(func(o *Output) bool { return o.Name() == name })
}

func (m *Map) FindByTag(tag KmsTag) *Output {
	return m.Find(func(o *Output) bool { return o.Tag() == tag })
}

func (m *Map) FindByPosition(p generaldata.Vector2i) *Output {
	return m.Find(func(o *Output) bool { return o.Geometry().ContainsPoint(p) })
}

func (m *Map) Outputs() []*Output { return m.outputs }

// Re-places every output's layer stack without moving the outputs
func (m *Map) ArrangeLayers() {
	for _, o := range m.outputs {
		o.Layers().Arrange(o.Geometry())
	}
}

// Drops dead layer surfaces on every output
func (m *Map) Refresh() {
	for _, o := range m.outputs {
		o.Layers().Refresh()
	}
}

// Broadcasts frame completion to every layer surface on every output
func (m *Map) SendFrames(timeMs uint32) {
	for _, o := range m.outputs {
		o.SendFrame(timeMs)
	}
}
