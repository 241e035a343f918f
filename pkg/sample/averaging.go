// Package sample turns raw sensor readings into the values the controller
// works with: smoothed readings and decimated series for display.
package sample

import (
	"github.com/itohio/warmer/pkg/device"
)

var _ device.Sensor = (*Averaging)(nil)

// Averaging smooths a sensor with a moving average over the last N good
// readings. A faulted reading is passed through and restarts the window.
type Averaging struct {
	sensor device.Sensor
	window []float32
	size   int
	next   int
}

// NewAveraging wraps sensor. A windowSize of 1 or less disables averaging.
func NewAveraging(sensor device.Sensor, windowSize int) *Averaging {
	if windowSize <= 0 {
		windowSize = 1 // No averaging if invalid
	}
	return &Averaging{
		sensor: sensor,
		window: make([]float32, 0, windowSize),
		size:   windowSize,
	}
}

// Read implements device.Sensor.
func (a *Averaging) Read() (float32, error) {
	v, err := a.sensor.Read()
	if err != nil {
		a.Reset()
		return v, err
	}
	if a.size == 1 {
		return v, nil
	}

	if len(a.window) < a.size {
		a.window = append(a.window, v)
	} else {
		a.window[a.next] = v
	}
	a.next = (a.next + 1) % a.size

	var sum float32
	for _, s := range a.window {
		sum += s
	}
	return sum / float32(len(a.window)), nil
}

// Reset drops the accumulated window.
func (a *Averaging) Reset() {
	a.window = a.window[:0]
	a.next = 0
}
