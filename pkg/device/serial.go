package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the probe's UART speed.
	DefaultBaudRate = 115200
	// DefaultStaleAfter is how long a reading stays usable.
	DefaultStaleAfter = 2 * time.Second
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial reads a temperature probe that streams one line per measurement:
//
//	T,21.87
//	T,ERR
//
// The latest line wins; Read never blocks on the port.
type Serial struct {
	port       string
	baudRate   int
	staleAfter time.Duration
	now        func() time.Time

	conn      io.ReadWriteCloser
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	done      chan struct{}

	latest    float32
	latestErr error
	latestAt  time.Time
}

// NewSerial creates a probe reader for the given port.
func NewSerial(port string, baudRate int, staleAfter time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if staleAfter == 0 {
		staleAfter = DefaultStaleAfter
	}

	return &Serial{
		port:       port,
		baudRate:   baudRate,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// Connect opens the serial port and starts reading lines.
func (s *Serial) Connect() error {
	port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	return s.attach(port)
}

// attach starts the reader on an already open stream.
func (s *Serial) attach(conn io.ReadWriteCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		conn.Close()
		return fmt.Errorf("already connected")
	}

	s.conn = conn
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	s.connected = true

	go s.readLines(s.ctx, conn, s.done)

	return nil
}

// Close stops the reader and closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return nil
	}
	s.cancel()
	err := s.conn.Close()
	s.connected = false
	done := s.done
	s.mu.Unlock()

	<-done

	if err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Read returns the most recent reading. It fails with ErrSensorFault when the
// probe reported an error or nothing fresh arrived within the stale window.
func (s *Serial) Read() (float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latestAt.IsZero() {
		return 0, fmt.Errorf("%w: no reading from %s yet", ErrSensorFault, s.port)
	}
	if age := s.now().Sub(s.latestAt); age > s.staleAfter {
		return 0, fmt.Errorf("%w: last reading is %v old", ErrSensorFault, age.Round(time.Millisecond))
	}
	if s.latestErr != nil {
		return 0, s.latestErr
	}
	return s.latest, nil
}

func (s *Serial) readLines(ctx context.Context, r io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		temp, err := parseLine(line)
		if err != nil && !errors.Is(err, ErrSensorFault) {
			logrus.WithField("port", s.port).Debugf("Failed to parse line '%s': %v", line, err)
			continue
		}

		s.mu.Lock()
		s.latest, s.latestErr, s.latestAt = temp, err, s.now()
		s.mu.Unlock()
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		logrus.WithField("port", s.port).Warnf("Error reading from serial port: %v", err)
	}
}

// parseLine parses one probe line. A probe-side failure ("T,ERR") yields
// ErrSensorFault; anything unparseable yields a plain error.
func parseLine(line string) (float32, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid line format: expected 2 comma-separated values, got %d", len(parts))
	}
	if parts[0] != "T" {
		return 0, fmt.Errorf("unknown record type %q", parts[0])
	}
	if parts[1] == "ERR" {
		return 0, fmt.Errorf("%w: probe reported an error", ErrSensorFault)
	}

	v, err := strconv.ParseFloat(parts[1], 32)
	if err != nil {
		return 0, fmt.Errorf("invalid temperature: %w", err)
	}
	return float32(v), nil
}
