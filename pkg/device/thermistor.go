package device

import (
	"fmt"

	"github.com/chewxy/math32"
)

const kelvin = 273.15

// Thermistor converts ADC counts from an NTC divider into Celsius using the
// beta model. The NTC sits on the low side of the divider.
type Thermistor struct {
	Nominal  float32 // Resistance at NominalC (ohm)
	NominalC float32 // Reference temperature (C)
	Beta     float32 // Beta coefficient (K)
	Series   float32 // High side resistor (ohm)
	FullRaw  uint16  // ADC reading at the supply rail
}

// Celsius returns the temperature for a raw reading. Readings at either rail
// mean an open or shorted probe.
func (t Thermistor) Celsius(raw uint16) (float32, error) {
	if raw == 0 {
		return 0, fmt.Errorf("%w: thermistor shorted", ErrSensorFault)
	}
	if raw >= t.FullRaw {
		return 0, fmt.Errorf("%w: thermistor open", ErrSensorFault)
	}

	r := t.Series * float32(raw) / float32(t.FullRaw-raw)
	inv := 1/(t.NominalC+kelvin) + math32.Log(r/t.Nominal)/t.Beta
	return 1/inv - kelvin, nil
}

// ADC is an analog input, like machine.ADC.
type ADC interface {
	Get() uint16
}

// ThermistorSensor averages several conversions per Read.
type ThermistorSensor struct {
	adc     ADC
	probe   Thermistor
	samples int
}

// NewThermistorSensor creates a sensor that averages samples raw readings.
func NewThermistorSensor(adc ADC, probe Thermistor, samples int) *ThermistorSensor {
	return &ThermistorSensor{adc: adc, probe: probe, samples: max(samples, 1)}
}

func (s *ThermistorSensor) Read() (float32, error) {
	var sum uint32
	for range s.samples {
		sum += uint32(s.adc.Get())
	}
	return s.probe.Celsius(uint16(sum / uint32(s.samples)))
}
