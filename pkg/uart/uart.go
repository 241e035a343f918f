// Package uart speaks the line protocol between the appliance and a host or
// radio coprocessor on a serial port.
//
// Appliance to host:
//
//	T,<celsius>   temperature report
//	H,<0|1>       heater report
//	E,<0|1>       enable state, echoed after an E command
//	L,INIT        request link initialization
//	L,STEER       request network steering
//
// Host to appliance:
//
//	E1, E0        enable or disable heating
//	CN            link started, not yet a member (steering follows)
//	C1            link started with restored membership
//	C0            link start failed or link lost
//	J1, J0        steering succeeded or failed
package uart

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/itohio/warmer/pkg/device"
	"github.com/itohio/warmer/pkg/link"
	"github.com/itohio/warmer/pkg/thermostat"
	"github.com/sirupsen/logrus"
)

// maxLine bounds a command line; longer input is dropped.
const maxLine = 16

// Port writes reports and link requests and dispatches incoming commands.
type Port struct {
	mu    sync.Mutex
	w     io.Writer
	flags *thermostat.Flags
	link  *link.Machine

	line [maxLine]byte
	pos  int
	skip bool
}

var (
	_ device.Telemetry  = (*Port)(nil)
	_ link.Commissioner = (*Port)(nil)
)

// New creates a port writing to w. The link machine drives flags'
// connectivity.
func New(w io.Writer, flags *thermostat.Flags) *Port {
	p := &Port{w: w, flags: flags}
	p.link = link.New(p, flags)
	return p
}

// Start asks the host to bring the link up.
func (p *Port) Start() { p.link.Handle(link.Startup) }

// Link returns the link state machine.
func (p *Port) Link() *link.Machine { return p.link }

// ReportNumeric writes a temperature line. Only the temperature record
// exists on the wire, so channel is ignored.
func (p *Port) ReportNumeric(_ string, v float32) error {
	return p.writef("T,%.2f\n", v)
}

// ReportBinary writes a heater line.
func (p *Port) ReportBinary(_ string, v bool) error {
	return p.writef("H,%s\n", bit(v))
}

// Commission asks the host to perform a link step.
func (p *Port) Commission(step link.Step) {
	var err error
	switch step {
	case link.Initialize:
		err = p.writef("L,INIT\n")
	case link.Steer:
		err = p.writef("L,STEER\n")
	}
	if err != nil {
		logrus.Warnf("Link request dropped: %v", err)
	}
}

func (p *Port) writef(format string, args ...any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		return fmt.Errorf("%w: %v", device.ErrTelemetryUnavailable, err)
	}
	return nil
}

// Feed consumes one received byte and dispatches a command when a line ends.
// It never blocks, so it can be polled from the firmware main loop. Feed must
// be called from a single goroutine.
func (p *Port) Feed(b byte) error {
	switch b {
	case '\n', '\r':
		line, skip := string(p.line[:p.pos]), p.skip
		p.pos, p.skip = 0, false
		if skip || line == "" {
			return nil
		}
		return p.Dispatch(line)
	case ' ', '\t':
	default:
		if p.pos == maxLine {
			p.skip = true
			return nil
		}
		p.line[p.pos] = b
		p.pos++
	}
	return nil
}

// Dispatch applies one command line. Unknown commands are reported as errors.
func (p *Port) Dispatch(cmd string) error {
	switch strings.ToUpper(strings.TrimSpace(cmd)) {
	case "E1":
		p.flags.SetEnabled(true)
		return p.writef("E,1\n")
	case "E0":
		p.flags.SetEnabled(false)
		return p.writef("E,0\n")
	case "CN":
		p.link.Handle(link.StartedNew)
	case "C1":
		p.link.Handle(link.StartedRejoin)
	case "C0":
		if p.link.State() == link.Initializing {
			p.link.Handle(link.StartFailed)
		} else {
			p.link.Handle(link.Lost)
		}
	case "J1":
		p.link.Handle(link.Steered)
	case "J0":
		p.link.Handle(link.SteerFailed)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func bit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
