package display

import (
	"fmt"
	"sync"

	"github.com/itohio/warmer/pkg/device"
)

// Memory keeps the last pushed frame. It backs the simulator, the HTTP
// snapshot endpoint and tests.
type Memory struct {
	mu     sync.RWMutex
	frame  []byte
	width  int
	height int
	pushes int
	fail   error
}

var _ device.Display = (*Memory)(nil)

// NewMemory returns an empty sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Push copies buf. The caller may reuse its buffer after Push returns.
func (m *Memory) Push(buf []byte, width, height int) error {
	if len(buf) != width*height/8 {
		return fmt.Errorf("%w: got %d bytes for %dx%d", device.ErrDisplayWrite, len(buf), width, height)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return fmt.Errorf("%w: %v", device.ErrDisplayWrite, m.fail)
	}
	m.frame = append(m.frame[:0], buf...)
	m.width, m.height = width, height
	m.pushes++
	return nil
}

// Frame returns a copy of the last frame and its size.
func (m *Memory) Frame() (buf []byte, width, height int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.frame...), m.width, m.height
}

// Pushes counts successful pushes.
func (m *Memory) Pushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pushes
}

// Fail makes subsequent pushes fail with err. nil restores normal operation.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}
