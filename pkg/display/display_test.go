package display

import (
	"errors"
	"testing"

	"github.com/itohio/warmer/pkg/config"
	"github.com/itohio/warmer/pkg/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

type recordBus struct {
	*i2ctest.Record
	closed bool
}

func (b *recordBus) Close() error {
	b.closed = true
	return nil
}

func testDisplayConfig() *config.DisplayConfig {
	return &config.DisplayConfig{Width: 128, Height: 64, Rotated: true}
}

func TestSSD1306_Push(t *testing.T) {
	bus := &recordBus{Record: &i2ctest.Record{}}
	d, err := newSSD1306(bus, testDisplayConfig())
	require.NoError(t, err)
	setup := len(bus.Ops)
	assert.NotZero(t, setup, "panel initialization commands")

	frame := make([]byte, 128*64/8)
	frame[0] = 0x01
	frame[len(frame)-1] = 0x80
	require.NoError(t, d.Push(frame, 128, 64))
	assert.Greater(t, len(bus.Ops), setup)

	require.NoError(t, d.Close())
	assert.True(t, bus.closed)
	assert.ErrorIs(t, d.Push(frame, 128, 64), device.ErrDisplayWrite)
	assert.NoError(t, d.Close())
}

func TestSSD1306_PushWrongSize(t *testing.T) {
	bus := &recordBus{Record: &i2ctest.Record{}}
	d, err := newSSD1306(bus, testDisplayConfig())
	require.NoError(t, err)

	err = d.Push(make([]byte, 128*32/8), 128, 32)
	assert.ErrorIs(t, err, device.ErrDisplayWrite)
}

func TestMemory(t *testing.T) {
	m := NewMemory()

	buf, w, h := m.Frame()
	assert.Empty(t, buf)
	assert.Zero(t, w)
	assert.Zero(t, h)

	frame := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, m.Push(frame, 8, 8))
	frame[0] = 0xff

	buf, w, h = m.Frame()
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf, "push copies the frame")
	assert.Equal(t, 8, w)
	assert.Equal(t, 8, h)
	assert.Equal(t, 1, m.Pushes())
}

func TestMemory_Errors(t *testing.T) {
	m := NewMemory()

	assert.ErrorIs(t, m.Push([]byte{1, 2}, 8, 8), device.ErrDisplayWrite)

	m.Fail(errors.New("i2c nack"))
	assert.ErrorIs(t, m.Push(make([]byte, 8), 8, 8), device.ErrDisplayWrite)
	assert.Zero(t, m.Pushes())

	m.Fail(nil)
	assert.NoError(t, m.Push(make([]byte, 8), 8, 8))
	assert.Equal(t, 1, m.Pushes())
}

func TestMulti(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	b.Fail(errors.New("unplugged"))
	m := Multi{a, b}

	err := m.Push(make([]byte, 8), 8, 8)
	assert.ErrorIs(t, err, device.ErrDisplayWrite)
	assert.Equal(t, 1, a.Pushes(), "healthy sink still updated")

	b.Fail(nil)
	assert.NoError(t, m.Push(make([]byte, 8), 8, 8))
	assert.NoError(t, Multi(nil).Push(nil, 0, 0))
}
