package gfx

// GlyphSize is the width and height of a font glyph in pixels.
const GlyphSize = 8

// DrawText draws s left to right starting at (x, y), one 8x8 glyph per byte.
// There is no wrapping; anything past the canvas edge is clipped.
func (fb *FrameBuffer) DrawText(x, y int, s string) {
	for i := 0; i < len(s); i++ {
		fb.DrawBitmap(x+GlyphSize*i, y, GlyphSize, GlyphSize, Glyph(s[i]))
	}
}

// TextWidth returns the rendered width of s in pixels.
func TextWidth(s string) int {
	return len(s) * GlyphSize
}

// Glyph returns the bitmap for a character code. Codes outside the basic
// Latin table render blank.
func Glyph(c byte) []byte {
	if int(c) >= len(font8x8) {
		return font8x8[0][:]
	}
	return font8x8[c][:]
}
