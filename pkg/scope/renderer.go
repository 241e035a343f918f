package scope

import (
	"fmt"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/itohio/warmer/pkg/history"
)

var (
	gridColor     = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	traceColor    = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	setpointColor = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	bandColor     = color.RGBA{R: 0, G: 100, B: 200, A: 255}
	heatingColor  = color.RGBA{R: 255, G: 80, B: 60, A: 255}
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	// Background
	grid *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 240)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.grid.Resize(size)

	if r.lastSize.Width != size.Width || r.lastSize.Height != size.Height {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds all canvas objects from the current data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.samples
	setpoint, offset := r.scope.setpoint, r.scope.offset
	heating, enabled := r.scope.heating, r.scope.enabled
	yMin, yMax := r.scope.yMin, r.scope.yMax
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.grid}

	marginLeft := float32(60.0)
	marginRight := float32(20.0)
	marginTop := float32(20.0)
	marginBottom := float32(40.0)

	p := plot{
		x:      marginLeft,
		y:      marginTop,
		width:  size.Width - marginLeft - marginRight,
		height: size.Height - marginTop - marginBottom,
		yMin:   yMin,
		yMax:   yMax,
		n:      len(samples),
	}

	r.drawGrid(p)
	if setpoint != 0 || offset != 0 {
		r.drawLevel(p, setpoint, setpointColor, 1.5)
		r.drawLevel(p, setpoint-offset, bandColor, 1)
		r.drawLevel(p, setpoint+offset, bandColor, 1)
	}
	r.drawTrace(p, samples)
	r.drawState(p, heating, enabled)
}

type plot struct {
	x, y, width, height float32
	yMin, yMax          float32
	n                   int
}

func (p plot) px(i int) float32 {
	if p.n <= 1 {
		return p.x
	}
	return p.x + float32(i)*p.width/float32(p.n-1)
}

func (p plot) py(v float32) float32 {
	return p.y + p.height - (v-p.yMin)/(p.yMax-p.yMin)*p.height
}

// drawGrid draws the grid with temperature and age labels.
func (r *scopeRenderer) drawGrid(p plot) {
	numHLines := 8
	for i := range numHLines + 1 {
		y := p.y + float32(i)*p.height/float32(numHLines)
		r.addLine(p.x, y, p.x+p.width, y, gridColor, 1)

		value := p.yMax - float32(i)*(p.yMax-p.yMin)/float32(numHLines)
		r.addText(fmt.Sprintf("%.2f°C", value), p.x-5, y-6, fyne.TextAlignTrailing, labelColor, 10)
	}

	numVLines := 8
	span := time.Duration(max(p.n-1, 0)) * r.scope.period
	for i := range numVLines + 1 {
		x := p.x + float32(i)*p.width/float32(numVLines)
		r.addLine(x, p.y, x, p.y+p.height, gridColor, 1)

		age := span - time.Duration(i)*span/time.Duration(numVLines)
		r.addText(fmt.Sprintf("-%.1fs", age.Seconds()), x-20, p.y+p.height+5, fyne.TextAlignCenter, labelColor, 10)
	}
}

func (r *scopeRenderer) drawLevel(p plot, v float32, c color.Color, width float32) {
	if v < p.yMin || v > p.yMax {
		return
	}
	y := p.py(v)
	r.addLine(p.x, y, p.x+p.width, y, c, width)
}

// drawTrace draws the temperature as line segments, broken at gaps.
func (r *scopeRenderer) drawTrace(p plot, samples []history.Sample) {
	for _, seg := range segments(samples) {
		if len(seg) == 1 {
			i := seg[0]
			dot := canvas.NewCircle(traceColor)
			dot.Resize(fyne.NewSize(3, 3))
			dot.Move(fyne.NewPos(p.px(i)-1.5, p.py(samples[i].Value)-1.5))
			r.objects = append(r.objects, dot)
			continue
		}
		for k := range len(seg) - 1 {
			a, b := seg[k], seg[k+1]
			r.addLine(p.px(a), p.py(samples[a].Value), p.px(b), p.py(samples[b].Value), traceColor, 1.5)
		}
	}
}

func (r *scopeRenderer) drawState(p plot, heating, enabled bool) {
	text, c := "heat off", labelColor
	if heating {
		text, c = "heat on", heatingColor
	}
	if !enabled {
		text += " (disabled)"
	}
	r.addText(text, p.x+10, p.y+10, fyne.TextAlignLeading, c, 11)
}

func (r *scopeRenderer) addLine(x1, y1, x2, y2 float32, c color.Color, width float32) {
	line := canvas.NewLine(c)
	line.Position1 = fyne.NewPos(x1, y1)
	line.Position2 = fyne.NewPos(x2, y2)
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

func (r *scopeRenderer) addText(s string, x, y float32, align fyne.TextAlign, c color.Color, size float32) {
	text := canvas.NewText(s, c)
	text.TextSize = size
	text.Alignment = align
	text.Move(fyne.NewPos(x, y))
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}
