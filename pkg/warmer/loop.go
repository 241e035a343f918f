// Package warmer runs the appliance: one loop that samples the probe,
// records history, drives the thermostat and redraws the screen.
package warmer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/warmer/pkg/config"
	"github.com/itohio/warmer/pkg/device"
	"github.com/itohio/warmer/pkg/gfx"
	"github.com/itohio/warmer/pkg/graph"
	"github.com/itohio/warmer/pkg/history"
	"github.com/itohio/warmer/pkg/sample"
	"github.com/itohio/warmer/pkg/thermostat"
	"github.com/sirupsen/logrus"
)

const (
	Title       = "Beer warmer"
	LinkBadge   = "up"
	OffMarker   = "OFF"
	faultedText = "--.-- C "
)

// Devices are the collaborators of the loop. Display and Telemetry may be nil.
type Devices struct {
	Sensor    device.Sensor
	Actuator  device.Actuator
	Display   device.Display
	Telemetry device.Telemetry
}

// Status is a snapshot published after every tick.
type Status struct {
	Time        time.Time        `json:"time"`
	Tick        uint64           `json:"tick"`
	Temperature float32          `json:"temperature"`
	Valid       bool             `json:"valid"`
	State       string           `json:"state"`
	Heating     bool             `json:"heating"`
	Enabled     bool             `json:"enabled"`
	Connected   bool             `json:"connected"`
	Setpoint    float32          `json:"setpoint"`
	Offset      float32          `json:"offset"`
	Fault       string           `json:"fault,omitempty"`
	History     []history.Sample `json:"-"` // oldest first
}

// Loop owns the framebuffer, the history and the controller. Only Flags,
// Status and OnUpdate may be used from other goroutines.
type Loop struct {
	cfg  *config.Config
	devs Devices

	fb    *gfx.FrameBuffer
	hist  *history.Buffer
	graph *graph.Graph
	ctrl  *thermostat.Controller
	flags *thermostat.Flags

	tick         uint64
	sensorFault  bool
	displayFault bool

	status atomic.Pointer[Status]

	callbacks []func(*Status)
	cbMu      sync.RWMutex
}

// New wires a loop. flags may be shared with the control plane; nil creates
// fresh ones.
func New(cfg *config.Config, devs Devices, flags *thermostat.Flags) (*Loop, error) {
	if devs.Sensor == nil || devs.Actuator == nil {
		return nil, fmt.Errorf("sensor and actuator are required")
	}
	if flags == nil {
		flags = thermostat.NewFlags()
	}

	if cfg.Sensor.Average > 1 {
		devs.Sensor = sample.NewAveraging(devs.Sensor, cfg.Sensor.Average)
	}

	fb, err := gfx.New(cfg.Display.Width, cfg.Display.Height)
	if err != nil {
		return nil, fmt.Errorf("failed to create framebuffer: %w", err)
	}

	l := &Loop{
		cfg:   cfg,
		devs:  devs,
		fb:    fb,
		hist:  history.New(cfg.History.Capacity),
		graph: graph.New(cfg.Display.GraphTop, cfg.Display.GraphHeight),
		ctrl:  thermostat.New(cfg, flags, devs.Actuator, devs.Telemetry),
		flags: flags,
	}
	fb.DrawText(0, 0, Title)
	l.status.Store(&Status{
		State:    l.ctrl.State().String(),
		Enabled:  flags.Enabled(),
		Setpoint: cfg.Thermostat.Setpoint,
		Offset:   cfg.Thermostat.Offset,
	})
	return l, nil
}

// Flags returns the shared control-plane flags.
func (l *Loop) Flags() *thermostat.Flags { return l.flags }

// FrameBuffer returns the screen. Read it only from the loop goroutine or an
// OnUpdate callback.
func (l *Loop) FrameBuffer() *gfx.FrameBuffer { return l.fb }

// Status returns the latest snapshot.
func (l *Loop) Status() *Status { return l.status.Load() }

// OnUpdate registers a callback invoked on the loop goroutine after each tick.
func (l *Loop) OnUpdate(fn func(*Status)) {
	l.cbMu.Lock()
	defer l.cbMu.Unlock()
	l.callbacks = append(l.callbacks, fn)
}

// Run ticks every loop period until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Loop.Period)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"period":   l.cfg.Loop.Period,
		"setpoint": l.cfg.Thermostat.Setpoint,
		"offset":   l.cfg.Thermostat.Offset,
	}).Info("Control loop started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Control loop stopped")
			return ctx.Err()
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick runs one sample-decide-render cycle and returns the new snapshot.
func (l *Loop) Tick() *Status {
	l.tick++

	temp, readErr := l.devs.Sensor.Read()
	if readErr == nil {
		readErr = device.Validate(temp, l.cfg.Sensor.Min, l.cfg.Sensor.Max)
	}
	if readErr != nil {
		l.hist.PushGap()
	} else {
		l.hist.Push(temp)
	}
	l.logTransition(&l.sensorFault, readErr, "Sensor")

	d, err := l.ctrl.Tick(temp, readErr)
	if err != nil {
		logrus.Warnf("Heater command failed: %v", err)
	}
	if d.Changed {
		logrus.WithFields(logrus.Fields{"temperature": temp, "state": d.State}).Info("Heater switched")
	}

	l.render(temp, readErr == nil, d.State)

	if l.devs.Display != nil {
		err := l.devs.Display.Push(l.fb.Bytes(), l.fb.Width(), l.fb.Height())
		l.logTransition(&l.displayFault, err, "Display")
	}

	s := l.snapshot(temp, readErr, d.State)
	l.status.Store(s)
	l.notifyCallbacks(s)
	return s
}

// logTransition logs a fault when it appears and when it clears.
func (l *Loop) logTransition(faulted *bool, err error, what string) {
	switch {
	case err != nil && !*faulted:
		logrus.Warnf("%s fault: %v", what, err)
	case err == nil && *faulted:
		logrus.Infof("%s recovered", what)
	}
	*faulted = err != nil
}

func (l *Loop) render(temp float32, valid bool, state thermostat.State) {
	w := l.fb.Width()
	l.fb.ClearArea(0, 0, w, l.cfg.Display.GraphTop)

	l.fb.DrawText(0, 0, Title)
	if l.flags.Connected() {
		l.fb.DrawText(w-gfx.TextWidth(LinkBadge), 0, LinkBadge)
	}

	text := faultedText
	if valid {
		text = fmt.Sprintf("%.2f C ", temp)
	}
	l.fb.DrawText(0, 10, text)

	if state == thermostat.Heating {
		l.fb.DrawText(0, 20, "heat on ")
	} else {
		l.fb.DrawText(0, 20, "heat off")
	}
	if !l.flags.Enabled() {
		l.fb.DrawText(w-gfx.TextWidth(OffMarker), 20, OffMarker)
	}

	l.graph.Render(l.fb, l.hist)
}

func (l *Loop) snapshot(temp float32, readErr error, state thermostat.State) *Status {
	s := &Status{
		Time:        time.Now(),
		Tick:        l.tick,
		Temperature: temp,
		Valid:       readErr == nil,
		State:       state.String(),
		Heating:     state == thermostat.Heating,
		Enabled:     l.flags.Enabled(),
		Connected:   l.flags.Connected(),
		Setpoint:    l.cfg.Thermostat.Setpoint,
		Offset:      l.cfg.Thermostat.Offset,
		History:     make([]history.Sample, 0, l.hist.Cap()),
	}
	if readErr != nil {
		s.Temperature = 0
		s.Fault = readErr.Error()
	}
	for _, h := range l.hist.All() {
		s.History = append(s.History, h)
	}
	return s
}

func (l *Loop) notifyCallbacks(s *Status) {
	l.cbMu.RLock()
	callbacks := make([]func(*Status), len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.cbMu.RUnlock()

	for _, cb := range callbacks {
		cb(s)
	}
}
