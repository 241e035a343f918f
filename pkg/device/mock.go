package device

import (
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/warmer/pkg/config"
)

// Mock simulates the heated vessel: a first order thermal plant driven by the
// heater, read by a noisy sensor. Every Read advances simulated time by one
// step, so runs are deterministic.
type Mock struct {
	cfg *config.MockConfig

	mu          sync.Mutex
	heater      bool
	temperature float32
	elapsed     time.Duration

	sensorFault bool
	heaterFault bool
}

// NewMock creates a simulated plant starting at ambient temperature.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			Ambient:      18.0,
			HeaterGain:   12.0,
			TimeConstant: 60 * time.Second,
			NoiseLevel:   0.02,
			Step:         100 * time.Millisecond,
		}
	}

	return &Mock{
		cfg:         cfg,
		temperature: cfg.Ambient,
	}
}

// Read advances the simulation by one step and returns the sensed temperature.
func (m *Mock) Read() (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.step()

	if m.sensorFault {
		return 0, fmt.Errorf("%w: simulated probe disconnected", ErrSensorFault)
	}

	t := float32(m.elapsed.Seconds())
	noise := (math32.Sin(t*0.7) + math32.Cos(t*1.3)) * m.cfg.NoiseLevel * 0.5

	return m.temperature + noise, nil
}

// Set switches the simulated heater.
func (m *Mock) Set(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.heaterFault {
		return fmt.Errorf("%w: simulated relay stuck", ErrActuatorFault)
	}
	m.heater = on
	return nil
}

// Heating reports the simulated heater state.
func (m *Mock) Heating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heater
}

// Temperature returns the noiseless plant temperature.
func (m *Mock) Temperature() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.temperature
}

// SetTemperature forces the plant temperature, e.g. to start a scenario.
func (m *Mock) SetTemperature(t float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.temperature = t
}

// InjectSensorFault makes subsequent reads fail until cleared.
func (m *Mock) InjectSensorFault(fault bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensorFault = fault
}

// InjectHeaterFault makes subsequent heater commands fail until cleared.
func (m *Mock) InjectHeaterFault(fault bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heaterFault = fault
}

// step integrates the plant: T approaches the ambient or heated equilibrium
// with the configured time constant.
func (m *Mock) step() {
	target := m.cfg.Ambient
	if m.heater {
		target += m.cfg.HeaterGain
	}

	dt := m.cfg.Step.Seconds()
	tau := m.cfg.TimeConstant.Seconds()
	alpha := float32(1.0)
	if tau > dt {
		alpha = float32(dt / tau)
	}

	m.temperature += alpha * (target - m.temperature)
	m.elapsed += m.cfg.Step
}
