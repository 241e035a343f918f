package display

import (
	"fmt"
	"sync"

	"github.com/itohio/warmer/pkg/config"
	"github.com/itohio/warmer/pkg/device"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// SSD1306 pushes page-packed frames to an OLED panel on an I²C bus.
type SSD1306 struct {
	mu     sync.Mutex
	bus    i2c.BusCloser
	dev    *ssd1306.Dev
	width  int
	height int
}

var _ device.Display = (*SSD1306)(nil)

// NewSSD1306 opens the configured I²C bus and initializes the panel.
func NewSSD1306(cfg *config.DisplayConfig) (*SSD1306, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("unable to open i2c bus %q: %w", cfg.I2CBus, err)
	}

	d, err := newSSD1306(bus, cfg)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return d, nil
}

func newSSD1306(bus i2c.BusCloser, cfg *config.DisplayConfig) (*SSD1306, error) {
	opts := ssd1306.DefaultOpts
	opts.W = cfg.Width
	opts.H = cfg.Height
	opts.Rotated = cfg.Rotated

	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize oled display: %w", err)
	}
	logrus.Infof("Display %s ready", dev)

	return &SSD1306{
		bus:    bus,
		dev:    dev,
		width:  cfg.Width,
		height: cfg.Height,
	}, nil
}

// Push writes the whole page buffer in one transfer.
func (d *SSD1306) Push(buf []byte, width, height int) error {
	if width != d.width || height != d.height {
		return fmt.Errorf("%w: frame %dx%d does not match panel %dx%d", device.ErrDisplayWrite, width, height, d.width, d.height)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return fmt.Errorf("%w: display closed", device.ErrDisplayWrite)
	}
	if _, err := d.dev.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", device.ErrDisplayWrite, err)
	}
	return nil
}

// Close blanks the panel and releases the bus.
func (d *SSD1306) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev == nil {
		return nil
	}
	if err := d.dev.Halt(); err != nil {
		logrus.Warnf("Failed to halt display: %v", err)
	}
	d.dev = nil
	return d.bus.Close()
}
