package gfx

import (
	"fmt"
	"image"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// FrameBuffer is a monochrome canvas packed the way SSD1306-class controllers
// expect it: one byte per column per 8-row page, LSB at the top.
type FrameBuffer struct {
	width  int
	height int
	pix    []byte
}

// New allocates a cleared frame buffer. Height must be a positive multiple of 8.
func New(width, height int) (*FrameBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame buffer size %dx%d", width, height)
	}
	if height%8 != 0 {
		return nil, fmt.Errorf("frame buffer height %d is not a multiple of 8", height)
	}

	return &FrameBuffer{
		width:  width,
		height: height,
		pix:    make([]byte, width*height/8),
	}, nil
}

// Width returns the canvas width in pixels.
func (fb *FrameBuffer) Width() int { return fb.width }

// Height returns the canvas height in pixels.
func (fb *FrameBuffer) Height() int { return fb.height }

// Bytes returns the page buffer. Sinks must treat it as read-only and must not
// retain it past the push call.
func (fb *FrameBuffer) Bytes() []byte { return fb.pix }

// Image exposes the buffer as an image without copying.
func (fb *FrameBuffer) Image() image.Image {
	return &image1bit.VerticalLSB{
		Pix:    fb.pix,
		Stride: fb.width,
		Rect:   image.Rect(0, 0, fb.width, fb.height),
	}
}

// index maps a pixel to its byte offset and bit mask. ok is false for any
// coordinate outside the canvas.
func (fb *FrameBuffer) index(x, y int) (offset int, mask byte, ok bool) {
	if x < 0 || y < 0 || x >= fb.width || y >= fb.height {
		return 0, 0, false
	}
	return (y/8)*fb.width + x, 1 << uint(y%8), true
}

// SetPixel turns a pixel on. Out-of-bounds coordinates are ignored.
func (fb *FrameBuffer) SetPixel(x, y int) {
	if i, m, ok := fb.index(x, y); ok {
		fb.pix[i] |= m
	}
}

// ClearPixel turns a pixel off. Out-of-bounds coordinates are ignored.
func (fb *FrameBuffer) ClearPixel(x, y int) {
	if i, m, ok := fb.index(x, y); ok {
		fb.pix[i] &^= m
	}
}

// Pixel reports whether a pixel is on. Out-of-bounds pixels read as off.
func (fb *FrameBuffer) Pixel(x, y int) bool {
	i, m, ok := fb.index(x, y)
	return ok && fb.pix[i]&m != 0
}

// FillArea sets every pixel of the rectangle, clipped to the canvas.
func (fb *FrameBuffer) FillArea(x, y, w, h int) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			fb.SetPixel(x+dx, y+dy)
		}
	}
}

// ClearArea clears every pixel of the rectangle, clipped to the canvas.
func (fb *FrameBuffer) ClearArea(x, y, w, h int) {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			fb.ClearPixel(x+dx, y+dy)
		}
	}
}

// Clear turns every pixel off.
func (fb *FrameBuffer) Clear() {
	clear(fb.pix)
}

// DrawBitmap blits a w x h mask at (x, y). Each row takes ceil(w/8) bytes and
// bit c of a row (LSB first) maps to column x+c. Zero bits clear the
// destination, so the bitmap replaces the background instead of blending.
func (fb *FrameBuffer) DrawBitmap(x, y, w, h int, bitmap []byte) {
	stride := (w + 7) / 8
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			i := r*stride + c/8
			if i < len(bitmap) && bitmap[i]&(1<<uint(c%8)) != 0 {
				fb.SetPixel(x+c, y+r)
			} else {
				fb.ClearPixel(x+c, y+r)
			}
		}
	}
}
