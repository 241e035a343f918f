package device

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

var (
	// ErrSensorFault means the reading is unavailable or outside the calibrated range.
	ErrSensorFault = errors.New("sensor fault")
	// ErrDisplayWrite means the display rejected a frame.
	ErrDisplayWrite = errors.New("display write failed")
	// ErrTelemetryUnavailable means the control-plane link is down.
	ErrTelemetryUnavailable = errors.New("telemetry unavailable")
	// ErrActuatorFault means the heater command was rejected.
	ErrActuatorFault = errors.New("actuator fault")
)

// Validate rejects readings that cannot come from a working sensor.
func Validate(temp, min, max float32) error {
	if math32.IsNaN(temp) || math32.IsInf(temp, 0) {
		return fmt.Errorf("%w: reading is not a number", ErrSensorFault)
	}
	if temp < min || temp > max {
		return fmt.Errorf("%w: reading %.2f outside [%.2f, %.2f]", ErrSensorFault, temp, min, max)
	}
	return nil
}
