package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createThermostatTab(state),
		createLoopTab(state),
		createMockTab(state),
		createMQTTTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(500, 400))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(500, 400))
	d.Show()
}

func floatEntry(v float32, format string) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(fmt.Sprintf(format, v))
	return e
}

func intEntry(v int) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(strconv.Itoa(v))
	return e
}

func durationEntry(v time.Duration) *widget.Entry {
	e := widget.NewEntry()
	e.SetText(v.String())
	return e
}

// parseFloat32 stores the entry value into dst when it parses.
func parseFloat32(e *widget.Entry, dst *float32) {
	if v, err := strconv.ParseFloat(e.Text, 32); err == nil {
		*dst = float32(v)
	}
}

func parseInt(e *widget.Entry, dst *int) {
	if v, err := strconv.Atoi(e.Text); err == nil {
		*dst = v
	}
}

func parseDuration(e *widget.Entry, dst *time.Duration) {
	if v, err := time.ParseDuration(e.Text); err == nil && v > 0 {
		*dst = v
	}
}

// applySettings validates and saves the configuration, then restarts a
// running simulation so it picks the new values up.
func applySettings(state *appState) {
	if err := state.cfg.Validate(); err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if err := state.cfg.Save(state.configPath); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
		return
	}

	if state.cancel != nil {
		stopLoop(state)
		if err := startLoop(state); err != nil {
			state.startBtn.SetIcon(startIcon())
			dialog.ShowError(err, state.window)
		}
	}
}

// createThermostatTab creates the Thermostat configuration tab.
func createThermostatTab(state *appState) *container.TabItem {
	t := &state.cfg.Thermostat
	setpointEntry := floatEntry(t.Setpoint, "%.2f")
	offsetEntry := floatEntry(t.Offset, "%.2f")
	reportEntry := intEntry(t.ReportEvery)
	reassertEntry := intEntry(t.ReassertEvery)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Setpoint (°C)", Widget: setpointEntry},
			{Text: "Deadband ± (°C)", Widget: offsetEntry},
			{Text: "Report every (ticks)", Widget: reportEntry},
			{Text: "Re-assert every (ticks)", Widget: reassertEntry},
		},
		OnSubmit: func() {
			parseFloat32(setpointEntry, &t.Setpoint)
			parseFloat32(offsetEntry, &t.Offset)
			parseInt(reportEntry, &t.ReportEvery)
			parseInt(reassertEntry, &t.ReassertEvery)
			applySettings(state)
		},
	}

	return container.NewTabItem("Thermostat", form)
}

// createLoopTab creates the Loop configuration tab.
func createLoopTab(state *appState) *container.TabItem {
	cfg := state.cfg
	periodEntry := durationEntry(cfg.Loop.Period)
	capacityEntry := intEntry(cfg.History.Capacity)
	averageEntry := intEntry(cfg.Sensor.Average)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Period", Widget: periodEntry},
			{Text: "History samples", Widget: capacityEntry},
			{Text: "Average readings", Widget: averageEntry},
		},
		OnSubmit: func() {
			parseDuration(periodEntry, &cfg.Loop.Period)
			parseInt(capacityEntry, &cfg.History.Capacity)
			parseInt(averageEntry, &cfg.Sensor.Average)
			applySettings(state)
		},
	}

	return container.NewTabItem("Loop", form)
}

// createMockTab creates the simulated vessel configuration tab.
func createMockTab(state *appState) *container.TabItem {
	m := &state.cfg.Mock
	ambientEntry := floatEntry(m.Ambient, "%.1f")
	gainEntry := floatEntry(m.HeaterGain, "%.1f")
	tauEntry := durationEntry(m.TimeConstant)
	noiseEntry := floatEntry(m.NoiseLevel, "%.3f")
	stepEntry := durationEntry(m.Step)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Ambient (°C)", Widget: ambientEntry},
			{Text: "Heater gain (°C)", Widget: gainEntry},
			{Text: "Time constant", Widget: tauEntry},
			{Text: "Noise (°C)", Widget: noiseEntry},
			{Text: "Step", Widget: stepEntry},
		},
		OnSubmit: func() {
			parseFloat32(ambientEntry, &m.Ambient)
			parseFloat32(gainEntry, &m.HeaterGain)
			parseDuration(tauEntry, &m.TimeConstant)
			parseFloat32(noiseEntry, &m.NoiseLevel)
			parseDuration(stepEntry, &m.Step)
			applySettings(state)
		},
	}

	return container.NewTabItem("Vessel", form)
}

// createMQTTTab creates the MQTT configuration tab.
func createMQTTTab(state *appState) *container.TabItem {
	m := &state.cfg.MQTT
	brokerEntry := widget.NewEntry()
	brokerEntry.SetPlaceHolder("mqtt://localhost:1883 (empty = simulated link)")
	brokerEntry.SetText(m.Broker)
	prefixEntry := widget.NewEntry()
	prefixEntry.SetText(m.TopicPrefix)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Broker", Widget: brokerEntry},
			{Text: "Topic prefix", Widget: prefixEntry},
		},
		OnSubmit: func() {
			m.Broker = brokerEntry.Text
			m.TopicPrefix = prefixEntry.Text
			applySettings(state)
		},
	}

	return container.NewTabItem("MQTT", form)
}
