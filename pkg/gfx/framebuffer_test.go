package gfx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func newTestBuffer(t *testing.T) *FrameBuffer {
	t.Helper()
	fb, err := New(128, 64)
	require.NoError(t, err)
	return fb
}

func TestNew(t *testing.T) {
	fb, err := New(128, 64)
	require.NoError(t, err)
	assert.Equal(t, 128, fb.Width())
	assert.Equal(t, 64, fb.Height())
	assert.Len(t, fb.Bytes(), 128*8)
}

func TestNew_InvalidSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
	}{
		{name: "height not multiple of 8", width: 128, height: 60},
		{name: "zero width", width: 0, height: 64},
		{name: "negative height", width: 128, height: -8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, err := New(tt.width, tt.height)
			assert.Error(t, err)
			assert.Nil(t, fb)
		})
	}
}

func TestSetPixel_PageLayout(t *testing.T) {
	fb := newTestBuffer(t)

	fb.SetPixel(5, 0)
	fb.SetPixel(5, 7)
	fb.SetPixel(9, 10)

	assert.Equal(t, byte(0x81), fb.Bytes()[5])
	assert.Equal(t, byte(0x04), fb.Bytes()[1*128+9])
}

func TestSetClearPixel_ReadBack(t *testing.T) {
	fb := newTestBuffer(t)

	points := [][2]int{{0, 0}, {127, 63}, {64, 31}, {1, 8}, {100, 15}}
	for _, p := range points {
		x, y := p[0], p[1]
		before := append([]byte(nil), fb.Bytes()...)

		fb.SetPixel(x, y)
		assert.True(t, fb.Pixel(x, y), "pixel (%d,%d) should be set", x, y)

		// Only the addressed bit may differ.
		diff := 0
		for i := range before {
			diff += bitCount(before[i] ^ fb.Bytes()[i])
		}
		assert.Equal(t, 1, diff)

		fb.ClearPixel(x, y)
		assert.False(t, fb.Pixel(x, y))
		assert.Equal(t, before, fb.Bytes())
	}
}

func TestClearPixel_NeighboursUntouched(t *testing.T) {
	fb := newTestBuffer(t)
	fb.FillArea(0, 0, 128, 64)

	fb.ClearPixel(10, 12)

	assert.False(t, fb.Pixel(10, 12))
	assert.True(t, fb.Pixel(10, 11))
	assert.True(t, fb.Pixel(10, 13))
	assert.True(t, fb.Pixel(9, 12))
	assert.True(t, fb.Pixel(11, 12))
}

func TestOutOfBounds_NoOp(t *testing.T) {
	fb := newTestBuffer(t)
	fb.FillArea(0, 0, 64, 32)
	before := append([]byte(nil), fb.Bytes()...)

	fb.SetPixel(128, 0)
	fb.SetPixel(0, 64)
	fb.SetPixel(-1, 3)
	fb.SetPixel(3, -1)
	fb.ClearPixel(128, 0)
	fb.ClearPixel(0, 64)
	fb.ClearPixel(1000, 1000)

	assert.True(t, bytes.Equal(before, fb.Bytes()))
	assert.False(t, fb.Pixel(200, 5))
}

func TestFillClearArea_Clipped(t *testing.T) {
	fb := newTestBuffer(t)

	fb.FillArea(120, 60, 20, 20)
	assert.True(t, fb.Pixel(127, 63))
	assert.True(t, fb.Pixel(120, 60))
	assert.False(t, fb.Pixel(119, 60))

	fb.ClearArea(124, 62, 10, 10)
	assert.False(t, fb.Pixel(127, 63))
	assert.True(t, fb.Pixel(123, 63))
}

func TestDrawBitmap_Overwrites(t *testing.T) {
	fb := newTestBuffer(t)
	fb.FillArea(0, 0, 8, 2)

	// Row 0: leftmost and rightmost pixel, row 1: empty.
	fb.DrawBitmap(0, 0, 8, 2, []byte{0x81, 0x00})

	assert.True(t, fb.Pixel(0, 0))
	assert.True(t, fb.Pixel(7, 0))
	for x := 1; x < 7; x++ {
		assert.False(t, fb.Pixel(x, 0), "x=%d", x)
	}
	for x := 0; x < 8; x++ {
		assert.False(t, fb.Pixel(x, 1), "x=%d", x)
	}
}

func TestDrawBitmap_WideRows(t *testing.T) {
	fb := newTestBuffer(t)

	// 12 pixel wide row uses two bytes.
	fb.DrawBitmap(2, 3, 12, 1, []byte{0x00, 0x08})

	assert.True(t, fb.Pixel(2+11, 3))
	assert.False(t, fb.Pixel(2+3, 3))
}

func TestImage(t *testing.T) {
	fb := newTestBuffer(t)
	fb.SetPixel(3, 9)

	img := fb.Image()
	assert.Equal(t, 128, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
	assert.Equal(t, image1bit.On, img.At(3, 9))
	assert.Equal(t, image1bit.Off, img.At(4, 9))
}

func TestClear(t *testing.T) {
	fb := newTestBuffer(t)
	fb.FillArea(0, 0, 128, 64)
	fb.Clear()
	assert.Equal(t, make([]byte, 128*8), fb.Bytes())
}

func bitCount(b byte) int {
	n := 0
	for ; b != 0; b &= b - 1 {
		n++
	}
	return n
}
