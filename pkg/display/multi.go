package display

import (
	"errors"

	"github.com/itohio/warmer/pkg/device"
)

// Multi pushes every frame to all sinks. All sinks are attempted; their
// errors are joined.
type Multi []device.Display

var _ device.Display = Multi(nil)

func (m Multi) Push(buf []byte, width, height int) error {
	var errs []error
	for _, d := range m {
		if err := d.Push(buf, width, height); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
