package gfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrawText_GlyphPlacement(t *testing.T) {
	fb := newTestBuffer(t)

	fb.DrawText(0, 0, "1-")

	// '1' row 6 is 0x3F: columns 0..5 on.
	for x := 0; x < 6; x++ {
		assert.True(t, fb.Pixel(x, 6), "x=%d", x)
	}
	assert.False(t, fb.Pixel(6, 6))

	// '-' starts at column 8, row 3 is 0x3F.
	for x := 8; x < 14; x++ {
		assert.True(t, fb.Pixel(x, 3), "x=%d", x)
	}
	assert.False(t, fb.Pixel(8, 2))
}

func TestDrawText_OverwritesBackground(t *testing.T) {
	fb := newTestBuffer(t)
	fb.FillArea(0, 0, 16, 8)

	fb.DrawText(0, 0, "  ")

	for x := 0; x < 16; x++ {
		for y := 0; y < 8; y++ {
			assert.False(t, fb.Pixel(x, y))
		}
	}
}

func TestDrawText_ClipsAtRightEdge(t *testing.T) {
	fb := newTestBuffer(t)

	assert.NotPanics(t, func() {
		fb.DrawText(120, 60, "overflowing text")
	})
	// 'o' row 2 is 0x1E: columns 1..4 of the first glyph.
	assert.True(t, fb.Pixel(121, 62))
}

func TestGlyph_OutOfTable(t *testing.T) {
	assert.Equal(t, make([]byte, 8), Glyph(200))
	assert.Equal(t, make([]byte, 8), Glyph(' '))
	assert.Len(t, Glyph('A'), 8)
}

func TestTextWidth(t *testing.T) {
	assert.Equal(t, 64, TextWidth("heat off"))
	assert.Equal(t, 0, TextWidth(""))
}
