// Package scope is a Fyne widget that plots the temperature history
// against the setpoint and its deadband.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/chewxy/math32"
	"github.com/itohio/warmer/pkg/history"
	"github.com/itohio/warmer/pkg/warmer"
)

// ScopeWidget displays the temperature trend of the control loop.
type ScopeWidget struct {
	widget.BaseWidget

	period time.Duration // time between history samples

	// Data (protected by mu)
	mu       sync.RWMutex
	samples  []history.Sample
	setpoint float32
	offset   float32
	heating  bool
	enabled  bool

	// Auto-scaling
	yMin, yMax float32
}

// New creates a new ScopeWidget. period is the loop period.
func New(period time.Duration) *ScopeWidget {
	s := &ScopeWidget{
		period: period,
		yMin:   0,
		yMax:   1,
	}
	s.ExtendBaseWidget(s)
	// Trigger initial refresh to display empty scope
	s.Refresh()
	return s
}

// UpdateStatus copies the trend out of a loop snapshot.
// This should be called from the loop callback using fyne.Do().
func (s *ScopeWidget) UpdateStatus(st *warmer.Status) {
	s.mu.Lock()
	s.samples = append(s.samples[:0], st.History...)
	s.setpoint = st.Setpoint
	s.offset = st.Offset
	s.heating = st.Heating
	s.enabled = st.Enabled
	s.yMin, s.yMax = autoScale(s.samples, s.setpoint, s.offset)
	s.mu.Unlock()

	// Refresh the widget (must be outside lock to avoid potential deadlock)
	s.Refresh()
}

// autoScale returns a Y range covering every valid sample and the deadband,
// with a 10% margin.
func autoScale(samples []history.Sample, setpoint, offset float32) (lo, hi float32) {
	lo, hi = setpoint-offset, setpoint+offset
	for _, smp := range samples {
		if !smp.Valid {
			continue
		}
		lo = math32.Min(lo, smp.Value)
		hi = math32.Max(hi, smp.Value)
	}

	span := hi - lo
	if span == 0 {
		span = 1.0
	}
	margin := span * 0.1
	return lo - margin, hi + margin
}

// segments splits the trace at gaps. Each segment holds sample indices.
func segments(samples []history.Sample) [][]int {
	var (
		out [][]int
		cur []int
	)
	for i, smp := range samples {
		if !smp.Valid {
			if len(cur) > 0 {
				out = append(out, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, i)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	grid := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255}) // Dark background
	return &scopeRenderer{
		scope:    s,
		grid:     grid,
		objects:  []fyne.CanvasObject{grid},
		lastSize: fyne.Size{Width: 0, Height: 0},
	}
}
