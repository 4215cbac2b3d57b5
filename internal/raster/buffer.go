// Package raster provides the float pixel buffers the preprocessing
// pipeline operates on. Values are interleaved RGBA float32, nominally
// in [0,1]; the 8-bit image boundary exists only at load/save time.
package raster

import "image"

// Buffer holds pixel data as a flat slice for cache locality.
type Buffer struct {
	Width  int
	Height int
	Pix    []float32 // RGBA interleaved, len = W*H*4
}

// New allocates a zeroed buffer.
func New(w, h int) *Buffer {
	return &Buffer{
		Width:  w,
		Height: h,
		Pix:    make([]float32, w*h*4),
	}
}

// NewFilled allocates a buffer with every pixel set to the given components.
func NewFilled(w, h int, r, g, b, a float32) *Buffer {
	buf := New(w, h)
	for i := 0; i < len(buf.Pix); i += 4 {
		buf.Pix[i] = r
		buf.Pix[i+1] = g
		buf.Pix[i+2] = b
		buf.Pix[i+3] = a
	}
	return buf
}

// FromNRGBA converts an 8-bit image into a float buffer.
func FromNRGBA(img *image.NRGBA) *Buffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	buf := New(w, h)
	for y := 0; y < h; y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * w * 4
		row := img.Pix[si : si+w*4]
		for x := 0; x < w*4; x++ {
			buf.Pix[di+x] = float32(row[x]) / 255.0
		}
	}
	return buf
}

// FromRGBA converts an 8-bit RGBA image into a float buffer. Channels are
// copied as-is; callers that care about premultiplied alpha must handle it
// themselves.
func FromRGBA(img *image.RGBA) *Buffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	buf := New(w, h)
	for y := 0; y < h; y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * w * 4
		row := img.Pix[si : si+w*4]
		for x := 0; x < w*4; x++ {
			buf.Pix[di+x] = float32(row[x]) / 255.0
		}
	}
	return buf
}

// ToNRGBA converts the buffer back to an 8-bit image, clamping to [0,1].
func (buf *Buffer) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	for i, v := range buf.Pix {
		img.Pix[i] = clamp8(v)
	}
	return img
}

// Clone returns an independent deep copy.
func (buf *Buffer) Clone() *Buffer {
	out := &Buffer{
		Width:  buf.Width,
		Height: buf.Height,
		Pix:    make([]float32, len(buf.Pix)),
	}
	copy(out.Pix, buf.Pix)
	return out
}

// Offset returns the Pix index of the red component at (x, y).
func (buf *Buffer) Offset(x, y int) int {
	return (y*buf.Width + x) * 4
}

// At returns the RGBA components at (x, y).
func (buf *Buffer) At(x, y int) (r, g, b, a float32) {
	i := buf.Offset(x, y)
	return buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3]
}

// Set writes the RGBA components at (x, y).
func (buf *Buffer) Set(x, y int, r, g, b, a float32) {
	i := buf.Offset(x, y)
	buf.Pix[i] = r
	buf.Pix[i+1] = g
	buf.Pix[i+2] = b
	buf.Pix[i+3] = a
}

func clamp8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Clamp01 clamps a component value into the nominal range.
func Clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
