//go:build tinygo

package main

import "machine"

const (
	// Loop timing
	LOOP_PERIOD_MS = 100 // Control loop period in milliseconds
	POLL_SLEEP_MS  = 1   // Main loop idle time between UART polls

	// Thermostat
	SETPOINT_C = 22.0 // Target temperature
	OFFSET_C   = 0.1  // Deadband half-width

	// Thermistor: 10k NTC, beta 3950, on the low side of a 10k divider
	NTC_NOMINAL_OHM = 10000
	NTC_NOMINAL_C   = 25
	NTC_BETA        = 3950
	NTC_SERIES_OHM  = 10000
	ADC_FULL_SCALE  = 0xFFFF // machine.ADC.Get scales every resolution to 16 bits
	NUM_SAMPLES     = 16     // ADC conversions averaged per reading

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Heater relay
	PIN_HEATER = machine.D7

	// Thermistor divider
	PIN_NTC = machine.A1

	// OLED
	OLED_ADDRESS = 0x3C
	OLED_WIDTH   = 128
	OLED_HEIGHT  = 64
	I2C_FREQ_HZ  = 400000

	// Serial configuration
	// Reports are "T,-12.34\n" and "H,1\n": at most ~14 bytes every tick,
	// far below what 115200 baud carries.
	UART_BAUD_RATE = 115200
)
