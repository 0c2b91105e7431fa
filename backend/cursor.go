package backend

import (
	"image"
	"image/color"
	"math"

	"github.com/sirupsen/logrus"

	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/renderer"
)

// Which image the pointer currently wears. Clients may hand over a surface
// role; when none is set (or the client went away) the built-in arrow is
// drawn instead
type CursorStatus struct {
	// Nil means the default cursor
	Surface *CursorSurface
}

// A client-provided cursor image with its hotspot in surface coordinates
type CursorSurface struct {
	Bitmap  *image.RGBA
	Hotspot generaldata.Vector2i
	// Reports whether the owning client surface still exists
	Alive func() bool
}

// Composites the pointer on top of the scene. Drawn last so it wins every
// overlap
func (b *Backend) drawCursor(dev *Device, frame renderer.Frame, geometry generaldata.Rect, scale float64) error {
	px, py := b.pointerLocation()
	if !geometry.Contains(px, py) {
		return nil
	}

	bitmap := defaultCursorBitmap
	hotspot := generaldata.Vector2i{}
	if cs := b.cursor.Surface; cs != nil {
		if cs.Alive != nil && !cs.Alive() {
			// Keeping a dead client's image around would freeze the cursor
			b.cursor.Surface = nil
		} else {
			bitmap = cs.Bitmap
			hotspot = cs.Hotspot
		}
	}
	if bitmap == nil {
		return nil
	}

	tex, err := dev.cursorTexture(bitmap)
	if err != nil {
		logrus.WithError(err).Warnln("Cursor bitmap import failed")
		return nil
	}

	loc := generaldata.Vector2i{
		X: int(math.Round((px - float64(geometry.Loc.X)) * scale)),
		Y: int(math.Round((py - float64(geometry.Loc.Y)) * scale)),
	}
	loc = loc.Sub(generaldata.Vector2i{
		X: int(math.Round(float64(hotspot.X) * scale)),
		Y: int(math.Round(float64(hotspot.Y) * scale)),
	})
	return frame.RenderTextureAt(tex, loc, scale, 1.0)
}

// Returns the device-local texture for the bitmap, importing on first use.
// Keyed by pointer identity: cursor bitmaps are immutable once handed over
func (d *Device) cursorTexture(bitmap *image.RGBA) (renderer.Texture, error) {
	if tex, ok := d.pointerTextures[bitmap]; ok {
		return tex, nil
	}
	tex, err := d.rend.ImportBitmap(bitmap)
	if err != nil {
		return nil, err
	}
	d.pointerTextures[bitmap] = tex
	return tex, nil
}

// Fallback arrow used until a client sets a cursor, roughly the classic
// left-pointer shape
var defaultCursorBitmap = buildDefaultCursor()

func buildDefaultCursor() *image.RGBA {
	const size = 16
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	black := color.RGBA{A: 0xff}
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	for y := 0; y < size; y++ {
		// Triangle narrowing toward the tip at the top-left
		width := size - y
		if width < 1 {
			width = 1
		}
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 {
				img.SetRGBA(x, y, black)
			} else {
				img.SetRGBA(x, y, white)
			}
		}
	}
	return img
}
