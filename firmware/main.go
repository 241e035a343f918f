//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"fmt"
	"io"
	"machine"
	"time"

	"github.com/itohio/warmer/pkg/config"
	"github.com/itohio/warmer/pkg/device"
	"github.com/itohio/warmer/pkg/thermostat"
	"github.com/itohio/warmer/pkg/uart"
	"github.com/itohio/warmer/pkg/warmer"
	"github.com/sirupsen/logrus"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ssd1306"
)

var serial = machine.Serial

func main() {
	// The serial port carries the line protocol, keep it free of log output.
	logrus.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.Thermostat.Setpoint = SETPOINT_C
	cfg.Thermostat.Offset = OFFSET_C
	cfg.Loop.Period = LOOP_PERIOD_MS * time.Millisecond
	cfg.Display.Width = OLED_WIDTH
	cfg.Display.Height = OLED_HEIGHT

	PIN_HEATER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_HEATER.Low()

	PIN_NTC.Configure(machine.PinConfig{Mode: machine.PinInput})
	adc := machine.ADC{Pin: PIN_NTC}
	adc.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	serial.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	sensor := device.NewThermistorSensor(&adc, device.Thermistor{
		Nominal:  NTC_NOMINAL_OHM,
		NominalC: NTC_NOMINAL_C,
		Beta:     NTC_BETA,
		Series:   NTC_SERIES_OHM,
		FullRaw:  ADC_FULL_SCALE,
	}, NUM_SAMPLES)

	flags := thermostat.NewFlags()
	port := uart.New(serial, flags)

	devs := warmer.Devices{
		Sensor:    sensor,
		Actuator:  heaterPin{PIN_HEATER},
		Telemetry: port,
	}
	if screen, err := newScreen(cfg.Display.Rotated); err != nil {
		println("# display disabled:", err.Error())
	} else {
		devs.Display = screen
	}

	loop, err := warmer.New(cfg, devs, flags)
	if err != nil {
		for {
			println("# fatal:", err.Error())
			time.Sleep(time.Second)
		}
	}

	port.Start()

	period := cfg.Loop.Period
	lastTick := time.Now()
	for {
		for serial.Buffered() > 0 {
			b, err := serial.ReadByte()
			if err != nil {
				break
			}
			if err := port.Feed(b); err != nil {
				println("#", err.Error())
			}
		}

		if now := time.Now(); now.Sub(lastTick) >= period {
			lastTick = now
			loop.Tick()
		}

		time.Sleep(POLL_SLEEP_MS * time.Millisecond)
	}
}

// heaterPin drives the heater relay.
type heaterPin struct {
	pin machine.Pin
}

func (h heaterPin) Set(on bool) error {
	h.pin.Set(on)
	return nil
}

// screen pushes frames to the SSD1306. The frame layout is the controller's
// native page layout, so the buffer is copied as is.
type screen struct {
	dev *ssd1306.Device
}

func newScreen(rotated bool) (*screen, error) {
	i2c := machine.I2C0
	if err := i2c.Configure(machine.I2CConfig{Frequency: I2C_FREQ_HZ}); err != nil {
		return nil, err
	}

	// Small delay for bus stabilization
	time.Sleep(10 * time.Millisecond)

	rotation := drivers.Rotation0
	if rotated {
		rotation = drivers.Rotation180
	}

	dev := ssd1306.NewI2C(i2c)
	dev.Configure(ssd1306.Config{
		Address:  OLED_ADDRESS,
		Width:    OLED_WIDTH,
		Height:   OLED_HEIGHT,
		Rotation: rotation,
	})
	dev.ClearDisplay()

	return &screen{dev: dev}, nil
}

func (s *screen) Push(buf []byte, width, height int) error {
	if width != OLED_WIDTH || height != OLED_HEIGHT {
		return fmt.Errorf("%w: frame %dx%d on a %dx%d panel", device.ErrDisplayWrite, width, height, OLED_WIDTH, OLED_HEIGHT)
	}
	if err := s.dev.SetBuffer(buf); err != nil {
		return fmt.Errorf("%w: %v", device.ErrDisplayWrite, err)
	}
	if err := s.dev.Display(); err != nil {
		return fmt.Errorf("%w: %v", device.ErrDisplayWrite, err)
	}
	return nil
}
