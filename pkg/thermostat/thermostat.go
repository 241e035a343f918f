package thermostat

import (
	"errors"
	"fmt"

	"github.com/itohio/warmer/pkg/config"
	"github.com/itohio/warmer/pkg/device"
	"github.com/sirupsen/logrus"
)

// State is the heater state.
type State int

const (
	Idle State = iota
	Heating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Heating:
		return "HEATING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Decision describes the outcome of one tick.
type Decision struct {
	State    State
	Changed  bool // state differs from the previous tick
	Held     bool // reading was faulted, state kept as is
	Reported bool // telemetry was sent this tick
}

// Controller is a hysteresis thermostat. Inside the deadband
// [setpoint-offset, setpoint+offset] it keeps its previous state.
//
// Controller is not safe for concurrent use; only Flags may be touched from
// other goroutines.
type Controller struct {
	setpoint      float32
	offset        float32
	reportEvery   int
	reassertEvery int
	tempChannel   string
	heaterChannel string

	flags     *Flags
	actuator  device.Actuator
	telemetry device.Telemetry

	state         State
	sinceReport   int
	sinceActuate  int
	actuatorDirty bool
}

// New creates a controller in the Idle state. telemetry may be nil.
func New(cfg *config.Config, flags *Flags, actuator device.Actuator, telemetry device.Telemetry) *Controller {
	if flags == nil {
		flags = NewFlags()
	}

	return &Controller{
		setpoint:      cfg.Thermostat.Setpoint,
		offset:        cfg.Thermostat.Offset,
		reportEvery:   cfg.Thermostat.ReportEvery,
		reassertEvery: cfg.Thermostat.ReassertEvery,
		tempChannel:   cfg.Telemetry.TemperatureChannel,
		heaterChannel: cfg.Telemetry.HeaterChannel,
		flags:         flags,
		actuator:      actuator,
		telemetry:     telemetry,
		state:         Idle,
	}
}

// State returns the current heater state.
func (c *Controller) State() State { return c.state }

// Flags returns the shared control-plane flags.
func (c *Controller) Flags() *Flags { return c.flags }

// Setpoint returns the target temperature.
func (c *Controller) Setpoint() float32 { return c.setpoint }

// Tick evaluates one reading. readErr marks the reading as unusable: the
// decision is suspended for this tick unless the operator disabled the
// appliance. The returned error is an actuator fault; the state still
// advances and the command is repeated on the next tick.
func (c *Controller) Tick(temp float32, readErr error) (Decision, error) {
	enabled := c.flags.Enabled()

	target := c.state
	switch {
	case !enabled:
		target = Idle
	case readErr != nil:
	case temp > c.setpoint+c.offset:
		target = Idle
	case temp < c.setpoint-c.offset:
		target = Heating
	}

	d := Decision{State: target, Held: enabled && readErr != nil}
	c.sinceReport++
	c.sinceActuate++

	if target != c.state {
		c.state = target
		d.Changed = true
		c.actuatorDirty = true
	}

	var err error
	if c.actuatorDirty || (c.reassertEvery > 0 && c.sinceActuate >= c.reassertEvery) {
		err = c.actuate()
	}

	// A faulted tick has no temperature to send, but a state change still
	// reports the new heater state.
	due := c.reportEvery > 0 && c.sinceReport >= c.reportEvery
	if (d.Changed || (due && readErr == nil)) && c.flags.Connected() {
		c.report(temp, readErr == nil)
		d.Reported = true
	}

	return d, err
}

func (c *Controller) actuate() error {
	c.sinceActuate = 0
	if err := c.actuator.Set(c.state == Heating); err != nil {
		c.actuatorDirty = true
		if !errors.Is(err, device.ErrActuatorFault) {
			err = fmt.Errorf("%w: %v", device.ErrActuatorFault, err)
		}
		return err
	}
	c.actuatorDirty = false
	return nil
}

// report sends the heater state and, when withTemp is set, the temperature.
// Failures are dropped.
func (c *Controller) report(temp float32, withTemp bool) {
	c.sinceReport = 0
	if c.telemetry == nil {
		return
	}

	errs := []error{c.telemetry.ReportBinary(c.heaterChannel, c.state == Heating)}
	if withTemp {
		errs = append(errs, c.telemetry.ReportNumeric(c.tempChannel, temp))
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, device.ErrTelemetryUnavailable) {
			logrus.Debugf("Telemetry report dropped: %v", err)
		}
	}
}
