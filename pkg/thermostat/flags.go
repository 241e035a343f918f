package thermostat

import "sync/atomic"

// Flags are the two inputs written by the control plane and read by the
// control loop. They are the only state shared across goroutines.
type Flags struct {
	enabled   atomic.Bool
	connected atomic.Bool
}

// NewFlags returns flags with the appliance enabled and the link down.
func NewFlags() *Flags {
	f := &Flags{}
	f.enabled.Store(true)
	return f
}

// Enabled reports the operator override. False forces the heater off.
func (f *Flags) Enabled() bool { return f.enabled.Load() }

// SetEnabled sets the operator override.
func (f *Flags) SetEnabled(v bool) { f.enabled.Store(v) }

// Connected reports whether telemetry can be sent.
func (f *Flags) Connected() bool { return f.connected.Load() }

// SetConnected records the link state.
func (f *Flags) SetConnected(v bool) { f.connected.Store(v) }
