package device

// Sensor produces calibrated temperature readings in degrees Celsius.
type Sensor interface {
	Read() (float32, error)
}

// Actuator switches the heater. Set is fire-and-forget.
type Actuator interface {
	Set(on bool) error
}

// Display consumes a finished page-packed frame once per tick.
type Display interface {
	Push(buf []byte, width, height int) error
}

// Telemetry reports state to the control plane, at most once and without
// retries.
type Telemetry interface {
	ReportNumeric(channel string, value float32) error
	ReportBinary(channel string, value bool) error
}

var (
	_ Sensor   = (*Mock)(nil)
	_ Actuator = (*Mock)(nil)
	_ Sensor   = (*Serial)(nil)
	_ Actuator = (*GPIOHeater)(nil)
)
