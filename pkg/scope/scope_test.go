package scope

import (
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/itohio/warmer/pkg/history"
	"github.com/itohio/warmer/pkg/warmer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valid(v float32) history.Sample { return history.Sample{Value: v, Valid: true} }

func TestAutoScale(t *testing.T) {
	tests := []struct {
		name    string
		samples []history.Sample
		lo, hi  float32
	}{
		{name: "empty uses the deadband", lo: 21.88, hi: 22.12},
		{name: "gaps ignored", samples: []history.Sample{{}, valid(20), {}, valid(24)}, lo: 19.6, hi: 24.4},
		{name: "samples inside the band", samples: []history.Sample{valid(22)}, lo: 21.88, hi: 22.12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := autoScale(tt.samples, 22, 0.1)
			assert.InDelta(t, tt.lo, lo, 1e-4)
			assert.InDelta(t, tt.hi, hi, 1e-4)
		})
	}

	lo, hi := autoScale(nil, 22, 0)
	assert.InDelta(t, 21.9, lo, 1e-4, "flat range gets a unit span")
	assert.InDelta(t, 22.1, hi, 1e-4)
}

func TestSegments(t *testing.T) {
	samples := []history.Sample{{}, valid(1), valid(2), {}, valid(3), {}, {}, valid(4), valid(5)}
	assert.Equal(t, [][]int{{1, 2}, {4}, {7, 8}}, segments(samples))
	assert.Empty(t, segments([]history.Sample{{}, {}}))
}

func TestScopeWidget_Render(t *testing.T) {
	test.NewTempApp(t)

	s := New(100 * time.Millisecond)
	s.Resize(fyne.NewSize(400, 240))
	s.UpdateStatus(&warmer.Status{
		Setpoint: 22,
		Offset:   0.1,
		Heating:  true,
		Enabled:  true,
		History:  []history.Sample{{}, valid(21.5), valid(21.7), {}, valid(21.9)},
	})

	r := test.WidgetRenderer(s)
	require.NotNil(t, r)
	r.Refresh()
	assert.Greater(t, len(r.Objects()), 1)
	assert.Equal(t, fyne.NewSize(400, 240), r.MinSize())
}
