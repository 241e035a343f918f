package graph

import (
	"github.com/chewxy/math32"
	"github.com/itohio/warmer/pkg/gfx"
	"github.com/itohio/warmer/pkg/history"
)

// Padding keeps the extreme samples off the rectangle edges.
const Padding = 0.5

// NoDataLabel is drawn when the history holds no valid sample.
const NoDataLabel = "no data"

// Column is the plotted geometry of one history slot. Heights are measured in
// pixels above the baseline. From..To is the inclusive span that gets filled;
// a single pixel has From == To == Y.
type Column struct {
	X     int
	Valid bool
	Y     int
	From  int
	To    int
}

// Graph renders a history buffer as an auto-scaled line graph into a band of
// the frame buffer starting at row Top, Height rows tall, one column per slot.
type Graph struct {
	Top    int
	Height int
}

// New creates a graph occupying rows [top, top+height).
func New(top, height int) *Graph {
	return &Graph{Top: top, Height: height}
}

// Range returns the padded vertical range of the valid samples. ok is false
// when there is no valid sample.
func Range(buf *history.Buffer) (lo, hi float32, ok bool) {
	lo, hi = math32.Inf(1), math32.Inf(-1)
	for _, s := range buf.All() {
		if !s.Valid {
			continue
		}
		ok = true
		if s.Value > hi {
			hi = s.Value
		}
		if s.Value < lo {
			lo = s.Value
		}
	}
	if !ok {
		return 0, 0, false
	}
	return lo - Padding, hi + Padding, true
}

// Scale returns pixels per degree for the given range and height.
func Scale(lo, hi float32, height int) float32 {
	return float32(height) / (hi - lo)
}

// Plot computes the column geometry in chronological order. It returns nil
// when there is nothing to plot.
func (g *Graph) Plot(buf *history.Buffer) []Column {
	lo, hi, ok := Range(buf)
	if !ok || g.Height <= 0 {
		return nil
	}
	scale := Scale(lo, hi, g.Height)

	cols := make([]Column, 0, buf.Cap())
	prev := -1
	for x, s := range buf.All() {
		if !s.Valid {
			// gaps leave prev untouched so they do not read as a flat line
			cols = append(cols, Column{X: x})
			continue
		}

		y := int(math32.Round(scale * (s.Value - lo)))
		y = max(0, min(y, g.Height-1))

		col := Column{X: x, Valid: true, Y: y, From: y, To: y}
		switch {
		case prev < 0, y == prev:
		case y > prev:
			col.From = prev + 1
		default:
			col.To = prev - 1
		}
		cols = append(cols, col)
		prev = y
	}
	return cols
}

// Render clears the graph band and draws the history into it. It reports
// whether any sample was plotted; otherwise the band shows NoDataLabel.
func (g *Graph) Render(fb *gfx.FrameBuffer, buf *history.Buffer) bool {
	width := min(buf.Cap(), fb.Width())
	fb.ClearArea(0, g.Top, width, g.Height)

	cols := g.Plot(buf)
	if cols == nil {
		g.renderNoData(fb, width)
		return false
	}

	baseline := g.Top + g.Height - 1
	for _, c := range cols {
		if !c.Valid {
			continue
		}
		if c.From == c.To {
			fb.SetPixel(c.X, baseline-c.Y)
			continue
		}
		fb.FillArea(c.X, baseline-c.To, 1, c.To-c.From+1)
	}
	return true
}

func (g *Graph) renderNoData(fb *gfx.FrameBuffer, width int) {
	w := gfx.TextWidth(NoDataLabel)
	if w > width || g.Height < gfx.GlyphSize {
		return
	}
	fb.DrawText((width-w)/2, g.Top+(g.Height-gfx.GlyphSize)/2, NoDataLabel)
}
