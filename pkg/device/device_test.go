package device

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/itohio/warmer/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		want      float32
		wantErr   bool
		wantFault bool
	}{
		{name: "valid reading", line: "T,21.87", want: 21.87},
		{name: "negative reading", line: "T,-4.5", want: -4.5},
		{name: "integer reading", line: "T,22", want: 22},
		{name: "probe error", line: "T,ERR", wantErr: true, wantFault: true},
		{name: "invalid - wrong number of fields", line: "T", wantErr: true},
		{name: "invalid - too many fields", line: "T,1,2", wantErr: true},
		{name: "invalid - unknown record", line: "H,1", wantErr: true},
		{name: "invalid - not a number", line: "T,abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.wantFault, errors.Is(err, ErrSensorFault))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-4)
		})
	}
}

type pipeConn struct {
	*io.PipeReader
}

func (pipeConn) Write(p []byte) (int, error) { return len(p), nil }

func TestSerial_ReadsLatestLine(t *testing.T) {
	r, w := io.Pipe()
	s := NewSerial("test", 0, time.Second)
	require.NoError(t, s.attach(pipeConn{r}))
	defer s.Close()

	_, err := s.Read()
	assert.ErrorIs(t, err, ErrSensorFault, "no reading yet")

	_, err = io.WriteString(w, "garbage\nT,21.50\nT,21.75\n")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, err := s.Read()
		return err == nil && v == 21.75
	}, time.Second, 5*time.Millisecond)

	_, err = io.WriteString(w, "T,ERR\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := s.Read()
		return errors.Is(err, ErrSensorFault)
	}, time.Second, 5*time.Millisecond)
}

func TestSerial_StaleReading(t *testing.T) {
	r, w := io.Pipe()
	now := time.Unix(1000, 0)
	s := NewSerial("test", 0, 2*time.Second)
	s.now = func() time.Time { return now }
	require.NoError(t, s.attach(pipeConn{r}))
	defer s.Close()

	_, err := io.WriteString(w, "T,20.00\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := s.Read()
		return err == nil
	}, time.Second, 5*time.Millisecond)

	now = now.Add(3 * time.Second)
	_, err = s.Read()
	assert.ErrorIs(t, err, ErrSensorFault)
}

func TestSerial_Close(t *testing.T) {
	r, _ := io.Pipe()
	s := NewSerial("test", 0, 0)
	require.NoError(t, s.attach(pipeConn{r}))
	assert.True(t, s.IsConnected())

	r2, _ := io.Pipe()
	assert.Error(t, s.attach(pipeConn{r2}), "second attach must fail")

	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
	assert.NoError(t, s.Close(), "closing twice is a no-op")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(22, -40, 125))
	assert.NoError(t, Validate(-40, -40, 125))
	assert.ErrorIs(t, Validate(126, -40, 125), ErrSensorFault)
	assert.ErrorIs(t, Validate(-41, -40, 125), ErrSensorFault)
	assert.ErrorIs(t, Validate(math32.NaN(), -40, 125), ErrSensorFault)
	assert.ErrorIs(t, Validate(math32.Inf(1), -40, 125), ErrSensorFault)
}

func testMockConfig() *config.MockConfig {
	return &config.MockConfig{
		Ambient:      18,
		HeaterGain:   12,
		TimeConstant: 10 * time.Second,
		NoiseLevel:   0,
		Step:         time.Second,
	}
}

func TestMock_HeatsAndCools(t *testing.T) {
	m := NewMock(testMockConfig())

	v, err := m.Read()
	require.NoError(t, err)
	assert.InDelta(t, 18, v, 1e-4, "starts at ambient")

	require.NoError(t, m.Set(true))
	assert.True(t, m.Heating())
	prev := v
	for i := 0; i < 20; i++ {
		v, err = m.Read()
		require.NoError(t, err)
		assert.Greater(t, v, prev)
		prev = v
	}
	assert.Less(t, v, float32(30), "never exceeds heated equilibrium")

	require.NoError(t, m.Set(false))
	next, err := m.Read()
	require.NoError(t, err)
	assert.Less(t, next, v)
}

func TestMock_Faults(t *testing.T) {
	m := NewMock(testMockConfig())

	m.InjectSensorFault(true)
	_, err := m.Read()
	assert.ErrorIs(t, err, ErrSensorFault)
	m.InjectSensorFault(false)
	_, err = m.Read()
	assert.NoError(t, err)

	m.InjectHeaterFault(true)
	assert.ErrorIs(t, m.Set(true), ErrActuatorFault)
	assert.False(t, m.Heating())
}

func TestMock_NilConfig(t *testing.T) {
	m := NewMock(nil)
	v, err := m.Read()
	require.NoError(t, err)
	assert.InDelta(t, 18, v, 0.1)
}

type failingPin struct {
	gpiotest.Pin
}

func (p *failingPin) Out(gpio.Level) error { return errors.New("bus error") }

func TestGPIOHeater(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO17"}
	h := NewGPIOHeaterPin(pin)

	require.NoError(t, h.Set(true))
	assert.Equal(t, gpio.High, pin.Read())
	require.NoError(t, h.Set(false))
	assert.Equal(t, gpio.Low, pin.Read())

	bad := NewGPIOHeaterPin(&failingPin{Pin: gpiotest.Pin{N: "GPIO18"}})
	assert.ErrorIs(t, bad.Set(true), ErrActuatorFault)
}

func testThermistor() Thermistor {
	return Thermistor{Nominal: 10000, NominalC: 25, Beta: 3950, Series: 10000, FullRaw: 65535}
}

func TestThermistor_Celsius(t *testing.T) {
	probe := testThermistor()

	tests := []struct {
		name      string
		raw       uint16
		want      float32
		wantFault bool
	}{
		{name: "midpoint is the nominal temperature", raw: 32767, want: 25},
		{name: "higher resistance is colder", raw: 43690, want: 10.2},
		{name: "lower resistance is warmer", raw: 21845, want: 41.5},
		{name: "shorted", raw: 0, wantFault: true},
		{name: "open", raw: 65535, wantFault: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := probe.Celsius(tt.raw)
			if tt.wantFault {
				assert.ErrorIs(t, err, ErrSensorFault)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.2)
		})
	}
}

type fakeADC []uint16

func (a *fakeADC) Get() uint16 {
	v := (*a)[0]
	*a = (*a)[1:]
	return v
}

func TestThermistorSensor_Averages(t *testing.T) {
	adc := fakeADC{32000, 33534, 0}
	s := NewThermistorSensor(&adc, testThermistor(), 2)

	v, err := s.Read()
	require.NoError(t, err)
	assert.InDelta(t, 25, v, 0.1)
	assert.Len(t, adc, 1)
}
