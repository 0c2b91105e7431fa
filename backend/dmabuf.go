package backend

import (
	"errors"

	"github.com/mstarongithub/way2kms/renderer"
)

// Buffer formats clients may use for dmabuf sharing: the union over every
// live device, since any of them might end up scanning the buffer out
func (b *Backend) SupportedFormats() []renderer.Format {
	seen := make(map[renderer.Format]struct{})
	var formats []renderer.Format
	for _, dev := range b.devices {
		for _, f := range dev.rend.SupportedFormats() {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			formats = append(formats, f)
		}
	}
	return formats
}

// Imports a client dmabuf into whichever render context accepts it, the
// primary one first. Multi-GPU imports are best effort
func (b *Backend) ImportDmabuf(buf *renderer.Dmabuf) (renderer.Texture, error) {
	if b.primaryRenderer != nil {
		if tex, err := b.primaryRenderer.ImportDmabuf(buf); err == nil {
			return tex, nil
		}
	}
	var lastErr error
	for _, dev := range b.devices {
		if dev.rend == b.primaryRenderer {
			continue
		}
		tex, err := dev.rend.ImportDmabuf(buf)
		if err == nil {
			return tex, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no render context available")
	}
	return nil, lastErr
}
