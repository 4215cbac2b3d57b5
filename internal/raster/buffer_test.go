package raster

import (
	"image"
	"testing"
)

func TestNRGBARoundTrip(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}

	buf := FromNRGBA(img)
	if buf.Width != 4 || buf.Height != 3 {
		t.Fatalf("got %dx%d, want 4x3", buf.Width, buf.Height)
	}

	back := buf.ToNRGBA()
	for i := range img.Pix {
		if back.Pix[i] != img.Pix[i] {
			t.Fatalf("pixel byte %d: got %d, want %d", i, back.Pix[i], img.Pix[i])
		}
	}
}

func TestFromNRGBAWithOffsetBounds(t *testing.T) {
	// Subimages have non-zero bounds; conversion must respect them.
	img := image.NewNRGBA(image.Rect(2, 5, 6, 8))
	i := img.PixOffset(3, 6)
	img.Pix[i] = 200

	buf := FromNRGBA(img)
	if buf.Width != 4 || buf.Height != 3 {
		t.Fatalf("got %dx%d, want 4x3", buf.Width, buf.Height)
	}
	if r, _, _, _ := buf.At(1, 1); r < 0.78 || r > 0.79 {
		t.Errorf("offset pixel: got %g, want ~200/255", r)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := NewFilled(2, 2, 0.5, 0.5, 0.5, 1)
	b := a.Clone()
	b.Pix[0] = 0.9
	if a.Pix[0] != 0.5 {
		t.Error("mutating the clone changed the original")
	}
}

func TestClamp(t *testing.T) {
	buf := New(1, 1)
	buf.Set(0, 0, -0.5, 1.5, 0.5, 1)
	img := buf.ToNRGBA()
	if img.Pix[0] != 0 || img.Pix[1] != 255 || img.Pix[2] != 128 {
		t.Errorf("got %v, want [0 255 128 ...]", img.Pix[:3])
	}
}
