// Command sim runs the control loop against the simulated vessel and shows
// the OLED screen and the temperature trend in a desktop window.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/warmer/pkg/config"
	"github.com/itohio/warmer/pkg/device"
	"github.com/itohio/warmer/pkg/display"
	"github.com/itohio/warmer/pkg/scope"
	"github.com/itohio/warmer/pkg/telemetry"
	"github.com/itohio/warmer/pkg/thermostat"
	"github.com/itohio/warmer/pkg/warmer"
	"github.com/sirupsen/logrus"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		debugFlag  = flag.Bool("d", false, "Debug logging")
	)
	flag.Parse()

	if *debugFlag {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	application := app.NewWithID("com.itohio.warmer")

	window := application.NewWindow("Beer Warmer Simulator")
	window.Resize(fyne.NewSize(1000, 700))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configPath: *configFlag,
		window:     window,
		flags:      thermostat.NewFlags(),
	}

	toolbar := createToolbar(state)

	state.oled = canvas.NewImageFromImage(blankScreen(cfg))
	state.oled.ScaleMode = canvas.ImageScalePixels
	state.oled.FillMode = canvas.ImageFillContain
	state.oled.SetMinSize(fyne.NewSize(float32(cfg.Display.Width*3), float32(cfg.Display.Height*3)))

	state.scopeWidget = scope.New(cfg.Loop.Period)

	content := container.NewBorder(
		toolbar,
		nil,
		container.NewPadded(state.oled),
		nil,
		state.scopeWidget,
	)

	window.SetContent(content)
	window.SetOnClosed(func() { stopLoop(state) })
	window.ShowAndRun()
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configPath string
	window     fyne.Window
	flags      *thermostat.Flags

	oled        *canvas.Image
	scopeWidget *scope.ScopeWidget

	startBtn    *widget.Button
	enableCheck *widget.Check
	linkCheck   *widget.Check

	// Current run (nil plant when stopped)
	plant  *device.Mock
	mqtt   *telemetry.MQTT
	cancel context.CancelFunc
	done   chan struct{}

	sensorFault bool
	heaterFault bool

	// Throttling for screen updates
	lastUpdateTime time.Time
	updateMu       sync.Mutex
}

// createToolbar creates the toolbar with Start, Settings, the control-plane
// switches and the fault injection switches.
func createToolbar(state *appState) fyne.CanvasObject {
	startBtn := widget.NewButtonWithIcon("", startIcon(), func() {
		handleStart(state)
	})
	state.startBtn = startBtn

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.enableCheck = widget.NewCheck("Enabled", func(on bool) {
		state.flags.SetEnabled(on)
	})
	state.enableCheck.SetChecked(state.flags.Enabled())

	// Simulated link. With a broker configured the link machine owns the flag.
	state.linkCheck = widget.NewCheck("Link", func(on bool) {
		state.flags.SetConnected(on)
	})

	sensorFault := widget.NewCheck("Probe fault", func(on bool) {
		state.sensorFault = on
		if state.plant != nil {
			state.plant.InjectSensorFault(on)
		}
	})
	heaterFault := widget.NewCheck("Heater fault", func(on bool) {
		state.heaterFault = on
		if state.plant != nil {
			state.plant.InjectHeaterFault(on)
		}
	})

	return container.NewBorder(
		nil, // top
		nil, // bottom
		container.NewHBox(startBtn, settingsBtn, state.enableCheck, state.linkCheck), // left
		container.NewHBox(sensorFault, heaterFault),                                  // right
		nil, // center (spacer)
	)
}

// handleStart starts or stops the control loop.
func handleStart(state *appState) {
	if state.cancel != nil {
		stopLoop(state)
		state.startBtn.SetIcon(startIcon())
		logrus.Info("Simulation stopped")
		return
	}

	if err := startLoop(state); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	state.startBtn.SetIcon(theme.MediaStopIcon())
	logrus.Info("Simulation started")
}

func startIcon() fyne.Resource { return theme.MediaPlayIcon() }

// startLoop builds a fresh plant and loop from the current configuration.
func startLoop(state *appState) error {
	cfg := state.cfg
	plant := device.NewMock(&cfg.Mock)
	plant.InjectSensorFault(state.sensorFault)
	plant.InjectHeaterFault(state.heaterFault)

	var tel device.Telemetry = logTelemetry{}
	var mqtt *telemetry.MQTT
	if cfg.MQTT.Broker != "" {
		m, err := telemetry.New(&cfg.MQTT, state.flags)
		if err != nil {
			return fmt.Errorf("failed to create MQTT client: %w", err)
		}
		mqtt = m
		tel = m
	}

	loop, err := warmer.New(cfg, warmer.Devices{
		Sensor:    plant,
		Actuator:  plant,
		Display:   display.NewMemory(),
		Telemetry: tel,
	}, state.flags)
	if err != nil {
		return err
	}

	// Throttle updates to ~60 FPS
	const updateInterval = 16 * time.Millisecond
	loop.OnUpdate(func(st *warmer.Status) {
		state.updateMu.Lock()
		now := time.Now()
		tooSoon := now.Sub(state.lastUpdateTime) < updateInterval
		if !tooSoon {
			state.lastUpdateTime = now
		}
		state.updateMu.Unlock()
		if tooSoon {
			return
		}

		// Callbacks run on the loop goroutine, so the frame can be copied here.
		frame := screenImage(loop)
		fyne.Do(func() {
			state.oled.Image = frame
			state.oled.Refresh()
			state.scopeWidget.UpdateStatus(st)
			if mqtt != nil {
				state.linkCheck.SetChecked(st.Connected)
			}
		})
	})

	if mqtt != nil {
		state.linkCheck.Disable()
		mqtt.Start()
	} else {
		state.flags.SetConnected(state.linkCheck.Checked)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			logrus.Errorf("Control loop stopped: %v", err)
		}
	}()

	state.plant = plant
	state.mqtt = mqtt
	state.cancel = cancel
	state.done = done
	return nil
}

// stopLoop cancels the running loop and waits for it to exit.
func stopLoop(state *appState) {
	if state.cancel == nil {
		return
	}
	state.cancel()
	<-state.done

	if state.mqtt != nil {
		if err := state.mqtt.Close(); err != nil {
			logrus.Warnf("MQTT close: %v", err)
		}
	}

	state.linkCheck.Enable()
	state.plant = nil
	state.mqtt = nil
	state.cancel = nil
	state.done = nil
}

// screenImage copies the framebuffer into a standalone image.
func screenImage(loop *warmer.Loop) image.Image {
	fb := loop.FrameBuffer()
	return &image1bit.VerticalLSB{
		Pix:    append([]byte(nil), fb.Bytes()...),
		Stride: fb.Width(),
		Rect:   image.Rect(0, 0, fb.Width(), fb.Height()),
	}
}

func blankScreen(cfg *config.Config) image.Image {
	return image1bit.NewVerticalLSB(image.Rect(0, 0, cfg.Display.Width, cfg.Display.Height))
}

// logTelemetry stands in for the broker when none is configured.
type logTelemetry struct{}

func (logTelemetry) ReportNumeric(channel string, v float32) error {
	logrus.WithField("channel", channel).Infof("%.2f", v)
	return nil
}

func (logTelemetry) ReportBinary(channel string, v bool) error {
	logrus.WithField("channel", channel).Info(v)
	return nil
}
