package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Thermostat ThermostatConfig `yaml:"thermostat"`
	Loop       LoopConfig       `yaml:"loop"`
	Display    DisplayConfig    `yaml:"display"`
	History    HistoryConfig    `yaml:"history"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Heater     HeaterConfig     `yaml:"heater"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	API        APIConfig        `yaml:"api"`
	Mock       MockConfig       `yaml:"mock"`
}

// ThermostatConfig contains the hysteresis controller parameters.
type ThermostatConfig struct {
	Setpoint      float32 `yaml:"setpoint"`       // Target temperature (C)
	Offset        float32 `yaml:"offset"`         // Deadband half-width (C)
	ReportEvery   int     `yaml:"report_every"`   // Periodic telemetry cadence in ticks (0 = only on change)
	ReassertEvery int     `yaml:"reassert_every"` // Re-send the actuator state every N ticks (0 = never)
}

// LoopConfig contains the control loop timing.
type LoopConfig struct {
	Period time.Duration `yaml:"period"`
}

// DisplayConfig contains the display geometry and driver selection.
type DisplayConfig struct {
	Driver      string `yaml:"driver"` // "none" or "ssd1306"
	I2CBus      string `yaml:"i2c_bus"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	GraphTop    int    `yaml:"graph_top"`
	GraphHeight int    `yaml:"graph_height"`
	Rotated     bool   `yaml:"rotated"`
}

// HistoryConfig contains the rolling history size.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// SensorConfig contains temperature source configuration.
type SensorConfig struct {
	Source     string        `yaml:"source"` // "mock" or "serial"
	Port       string        `yaml:"port"`
	BaudRate   int           `yaml:"baud_rate"`
	Min        float32       `yaml:"min"` // Lowest plausible reading (C)
	Max        float32       `yaml:"max"` // Highest plausible reading (C)
	StaleAfter time.Duration `yaml:"stale_after"`
	Average    int           `yaml:"average"` // Moving average window in readings (1 = off)
}

// HeaterConfig contains actuator configuration.
type HeaterConfig struct {
	Driver string `yaml:"driver"` // "mock" or "gpio"
	Pin    string `yaml:"pin"`
}

// MQTTConfig contains the telemetry broker connection.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // Empty disables MQTT
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// TelemetryConfig names the reported channels.
type TelemetryConfig struct {
	TemperatureChannel string `yaml:"temperature_channel"`
	HeaterChannel      string `yaml:"heater_channel"`
}

// APIConfig contains the HTTP status API settings.
type APIConfig struct {
	Listen string `yaml:"listen"` // Empty disables the API
}

// MockConfig contains the simulated thermal plant parameters.
type MockConfig struct {
	Ambient      float32       `yaml:"ambient"`       // Temperature with the heater off (C)
	HeaterGain   float32       `yaml:"heater_gain"`   // Equilibrium rise with the heater on (C)
	TimeConstant time.Duration `yaml:"time_constant"` // First order lag of the plant
	NoiseLevel   float32       `yaml:"noise_level"`   // Peak noise (C)
	Step         time.Duration `yaml:"step"`          // Simulated time per reading
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Thermostat: ThermostatConfig{
			Setpoint:      22.0,
			Offset:        0.1,
			ReportEvery:   10,
			ReassertEvery: 50,
		},
		Loop: LoopConfig{
			Period: 100 * time.Millisecond,
		},
		Display: DisplayConfig{
			Driver:      "none",
			Width:       128,
			Height:      64,
			GraphTop:    32,
			GraphHeight: 32,
			Rotated:     true, // the panel is mounted upside down
		},
		History: HistoryConfig{
			Capacity: 128,
		},
		Sensor: SensorConfig{
			Source:     "mock",
			Port:       "/dev/ttyACM0",
			BaudRate:   115200,
			Min:        -40,
			Max:        125,
			StaleAfter: 2 * time.Second,
			Average:    1,
		},
		Heater: HeaterConfig{
			Driver: "mock",
			Pin:    "GPIO17",
		},
		MQTT: MQTTConfig{
			TopicPrefix: "warmer/",
		},
		Telemetry: TelemetryConfig{
			TemperatureChannel: "temperature",
			HeaterChannel:      "heater",
		},
		API: APIConfig{
			Listen: ":8080",
		},
		Mock: MockConfig{
			Ambient:      18.0,
			HeaterGain:   12.0,
			TimeConstant: 60 * time.Second,
			NoiseLevel:   0.02,
			Step:         100 * time.Millisecond,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the invariants the rest of the program relies on.
func (c *Config) Validate() error {
	if c.Thermostat.Offset < 0 {
		return fmt.Errorf("thermostat offset must not be negative: %v", c.Thermostat.Offset)
	}
	if c.Display.Height%8 != 0 {
		return fmt.Errorf("display height must be a multiple of 8: %d", c.Display.Height)
	}
	if c.Display.GraphTop < 0 || c.Display.GraphHeight <= 0 ||
		c.Display.GraphTop+c.Display.GraphHeight > c.Display.Height {
		return fmt.Errorf("graph band [%d,%d) does not fit the display height %d",
			c.Display.GraphTop, c.Display.GraphTop+c.Display.GraphHeight, c.Display.Height)
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history capacity must be positive: %d", c.History.Capacity)
	}
	if c.Sensor.Min >= c.Sensor.Max {
		return fmt.Errorf("sensor range is empty: [%v, %v]", c.Sensor.Min, c.Sensor.Max)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Thermostat.Setpoint == 0 {
		c.Thermostat.Setpoint = def.Thermostat.Setpoint
	}

	if c.Loop.Period == 0 {
		c.Loop.Period = def.Loop.Period
	}

	if c.Display.Driver == "" {
		c.Display.Driver = def.Display.Driver
	}
	if c.Display.Width == 0 {
		c.Display.Width = def.Display.Width
	}
	if c.Display.Height == 0 {
		c.Display.Height = def.Display.Height
	}
	if c.Display.GraphHeight == 0 {
		c.Display.GraphTop = def.Display.GraphTop
		c.Display.GraphHeight = def.Display.GraphHeight
	}

	if c.History.Capacity <= 0 {
		c.History.Capacity = def.History.Capacity
	}

	if c.Sensor.Source == "" {
		c.Sensor.Source = def.Sensor.Source
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}
	if c.Sensor.Min == 0 && c.Sensor.Max == 0 {
		c.Sensor.Min = def.Sensor.Min
		c.Sensor.Max = def.Sensor.Max
	}
	if c.Sensor.StaleAfter == 0 {
		c.Sensor.StaleAfter = def.Sensor.StaleAfter
	}
	if c.Sensor.Average <= 0 {
		c.Sensor.Average = def.Sensor.Average
	}

	if c.Heater.Driver == "" {
		c.Heater.Driver = def.Heater.Driver
	}

	if c.Telemetry.TemperatureChannel == "" {
		c.Telemetry.TemperatureChannel = def.Telemetry.TemperatureChannel
	}
	if c.Telemetry.HeaterChannel == "" {
		c.Telemetry.HeaterChannel = def.Telemetry.HeaterChannel
	}

	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}
	if c.Mock.Step == 0 {
		c.Mock.Step = def.Mock.Step
	}
}
