package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/warmer/pkg/api"
	"github.com/itohio/warmer/pkg/config"
	"github.com/itohio/warmer/pkg/device"
	"github.com/itohio/warmer/pkg/display"
	"github.com/itohio/warmer/pkg/telemetry"
	"github.com/itohio/warmer/pkg/thermostat"
	"github.com/itohio/warmer/pkg/warmer"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		portFlag   = flag.String("p", "", "Serial port override (e.g., /dev/ttyACM0)")
		mockFlag   = flag.Bool("mock", false, "Simulate the vessel instead of using real hardware")
		portsFlag  = flag.Bool("ports", false, "List serial ports and exit")
		debugFlag  = flag.Bool("d", false, "Debug logging")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *debugFlag {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if *portsFlag {
		if err := listPorts(); err != nil {
			logrus.Fatalf("Failed to list serial ports: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Sensor.Source = "serial"
		cfg.Sensor.Port = *portFlag
	}
	if *mockFlag {
		cfg.Sensor.Source = "mock"
		cfg.Heater.Driver = "mock"
		cfg.Display.Driver = "none"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.Fatal(err)
	}
}

func listPorts() error {
	ports, err := device.Ports()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Printf("%s\t%s\n", p.Name, p.Description)
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	flags := thermostat.NewFlags()
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logrus.Warnf("Shutdown: %v", err)
			}
		}
	}()

	var plant *device.Mock
	if cfg.Sensor.Source == "mock" || cfg.Heater.Driver == "mock" {
		plant = device.NewMock(&cfg.Mock)
	}

	var sensor device.Sensor
	switch cfg.Sensor.Source {
	case "mock":
		sensor = plant
	case "serial":
		probe := device.NewSerial(cfg.Sensor.Port, cfg.Sensor.BaudRate, cfg.Sensor.StaleAfter)
		if err := probe.Connect(); err != nil {
			return fmt.Errorf("failed to open probe: %w", err)
		}
		closers = append(closers, probe)
		sensor = probe
	default:
		return fmt.Errorf("unknown sensor source %q", cfg.Sensor.Source)
	}

	var heater device.Actuator
	switch cfg.Heater.Driver {
	case "mock":
		heater = plant
	case "gpio":
		pin, err := device.NewGPIOHeater(cfg.Heater.Pin)
		if err != nil {
			return err
		}
		heater = pin
	default:
		return fmt.Errorf("unknown heater driver %q", cfg.Heater.Driver)
	}

	frames := display.NewMemory()
	sinks := display.Multi{frames}
	switch cfg.Display.Driver {
	case "none":
	case "ssd1306":
		panel, err := display.NewSSD1306(&cfg.Display)
		if err != nil {
			return err
		}
		closers = append(closers, panel)
		sinks = append(sinks, panel)
	default:
		return fmt.Errorf("unknown display driver %q", cfg.Display.Driver)
	}

	var tel device.Telemetry
	if cfg.MQTT.Broker != "" {
		mqtt, err := telemetry.New(&cfg.MQTT, flags)
		if err != nil {
			return err
		}
		mqtt.Start()
		closers = append(closers, mqtt)
		tel = mqtt
	}

	loop, err := warmer.New(cfg, warmer.Devices{
		Sensor:    sensor,
		Actuator:  heater,
		Display:   sinks,
		Telemetry: tel,
	}, flags)
	if err != nil {
		return err
	}

	if cfg.API.Listen != "" {
		srv := api.New(cfg.API.Listen, loop, frames)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logrus.Warnf("HTTP API shutdown: %v", err)
			}
		}()
	}

	err = loop.Run(ctx)
	// Leave the heater off on exit.
	if err := heater.Set(false); err != nil {
		logrus.Warnf("Failed to switch heater off: %v", err)
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}
