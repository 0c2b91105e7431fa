package backend

import (
	"testing"

	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/renderer"
)

func TestSupportedFormatsUnion(t *testing.T) {
	rig := newTestRig(t)
	rig.addFakeDevice(t, 1, twoHeadCard(), newFakeAllocator())
	rig.addFakeDevice(t, 2, twoHeadCard(), newFakeAllocator())

	formats := rig.backend.SupportedFormats()
	// Both fakes advertise the same single format, the union deduplicates
	if len(formats) != 1 {
		t.Errorf("union has %d formats, want 1: %v", len(formats), formats)
	}
	if formats[0].Code != renderer.FormatXRGB8888 {
		t.Errorf("unexpected format %v", formats[0])
	}
}

func TestImportDmabuf(t *testing.T) {
	rig := newTestRig(t)
	rig.addFakeDevice(t, 1, twoHeadCard(), newFakeAllocator())

	tex, err := rig.backend.ImportDmabuf(&renderer.Dmabuf{
		Size:   generaldata.Vector2i{X: 256, Y: 128},
		Format: renderer.FormatXRGB8888,
		Planes: []renderer.DmabufPlane{{Fd: 3, Pitch: 1024}},
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if tex.Size() != (generaldata.Vector2i{X: 256, Y: 128}) {
		t.Errorf("imported texture size %v", tex.Size())
	}
}

func TestImportDmabufWithoutDevices(t *testing.T) {
	rig := newTestRig(t)
	if _, err := rig.backend.ImportDmabuf(&renderer.Dmabuf{}); err == nil {
		t.Errorf("import succeeded with no render context")
	}
}
