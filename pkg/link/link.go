// Package link tracks the uplink used for telemetry. The machine walks
// through initialization and steering before the link counts as joined,
// and retries failed steps after a fixed delay.
package link

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryDelay is the pause before a failed step is attempted again.
const RetryDelay = time.Second

type State int

const (
	Down State = iota
	Initializing
	Steering
	Joined
)

func (s State) String() string {
	switch s {
	case Down:
		return "down"
	case Initializing:
		return "initializing"
	case Steering:
		return "steering"
	case Joined:
		return "joined"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Event int

const (
	Startup Event = iota
	// StartedNew reports a successful start without stored membership.
	StartedNew
	// StartedRejoin reports a successful start that restored membership.
	StartedRejoin
	StartFailed
	Steered
	SteerFailed
	Lost
)

var eventNames = [...]string{"startup", "started-new", "started-rejoin", "start-failed", "steered", "steer-failed", "lost"}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Step is the work a transport performs when the machine asks for it.
type Step int

const (
	NoStep Step = iota
	Initialize
	Steer
)

func (s Step) String() string {
	switch s {
	case Initialize:
		return "initialize"
	case Steer:
		return "steer"
	default:
		return "none"
	}
}

// Commissioner performs steps. It reports the outcome back through
// Machine.Handle, possibly from another goroutine.
type Commissioner interface {
	Commission(step Step)
}

// Connectivity receives the joined state. SetConnected is called with the
// machine locked and must not call back into it.
type Connectivity interface {
	SetConnected(bool)
}

type transition struct {
	to    State
	step  Step
	retry bool // run step after RetryDelay instead of immediately
}

var transitions = map[State]map[Event]transition{
	Down: {
		Startup: {to: Initializing, step: Initialize},
	},
	Initializing: {
		StartedNew:    {to: Steering, step: Steer},
		StartedRejoin: {to: Joined},
		StartFailed:   {to: Initializing, step: Initialize, retry: true},
	},
	Steering: {
		Steered:     {to: Joined},
		SteerFailed: {to: Steering, step: Steer, retry: true},
		Lost:        {to: Initializing, step: Initialize, retry: true},
	},
	Joined: {
		Lost: {to: Initializing, step: Initialize, retry: true},
	},
}

// Machine is safe for concurrent use.
type Machine struct {
	mu    sync.Mutex
	state State

	commissioner Commissioner
	conn         Connectivity
	after        func(time.Duration, func())
}

// New returns a machine in the Down state. commissioner may be nil when
// steps need no work.
func New(commissioner Commissioner, conn Connectivity) *Machine {
	return &Machine{
		commissioner: commissioner,
		conn:         conn,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Handle applies ev and returns the resulting state. Events that do not
// apply to the current state are ignored.
func (m *Machine) Handle(ev Event) State {
	m.mu.Lock()
	from := m.state
	tr, ok := transitions[from][ev]
	if !ok {
		m.mu.Unlock()
		logrus.Debugf("Link: ignoring %s in state %s", ev, from)
		return from
	}
	m.state = tr.to
	// Published under the lock so the flag always matches the last committed state.
	if m.conn != nil {
		m.conn.SetConnected(tr.to == Joined)
	}
	m.mu.Unlock()

	entry := logrus.WithFields(logrus.Fields{"event": ev, "from": from, "to": tr.to})
	switch {
	case tr.retry:
		entry.Warnf("Link step failed, retrying %s in %v", tr.step, RetryDelay)
		m.after(RetryDelay, func() { m.run(tr.step) })
	case tr.to == Joined:
		entry.Info("Link joined")
	default:
		entry.Debug("Link transition")
	}

	if !tr.retry {
		m.run(tr.step)
	}
	return tr.to
}

func (m *Machine) run(step Step) {
	if step == NoStep || m.commissioner == nil {
		return
	}
	m.commissioner.Commission(step)
}
