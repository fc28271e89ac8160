package render

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/guidoenr/rfscope/internal/spectrogram"
)

// Renderer converts normalized frames into terminal lines: time runs left to
// right (newest at the right edge), frequency bottom to top. Each character
// cell shows the peak of the frame block it covers.
type Renderer struct {
	width    int
	height   int
	colormap *Colormap
	useANSI  bool
	axis     Axis
}

// View contains the rendered lines, axes included.
type View struct {
	Lines []string
}

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
	intensityRamp   = []rune(" .:-=+*#%@")
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// New creates a Renderer for a width x height character grid.
func New(width, height int, colormapName string, useANSI bool, axis Axis) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}
	return &Renderer{
		width:    width,
		height:   height,
		colormap: LookupColormap(colormapName),
		useANSI:  useANSI,
		axis:     axis,
	}, nil
}

// Resize updates the grid dimensions. Non-positive values are ignored.
func (r *Renderer) Resize(width, height int) {
	if width > 0 {
		r.width = width
	}
	if height > 0 {
		r.height = height
	}
}

// SetColormap switches the lookup table.
func (r *Renderer) SetColormap(name string) {
	r.colormap = LookupColormap(name)
}

// ColormapName returns the active lookup table.
func (r *Renderer) ColormapName() string {
	return r.colormap.Name()
}

// Render draws frame into the grid.
func (r *Renderer) Render(frame *spectrogram.Frame) View {
	gutter := r.axis.gutterWidth()
	plotW := r.width - gutter
	if plotW < 1 {
		gutter = 0
		plotW = r.width
	}
	plotH := r.height
	showTime := len(r.axis.TimeTicks) > 0 && r.height > 1
	if showTime {
		plotH--
	}

	rows, bins := frame.Rows(), frame.Bins()
	labels := r.freqLabels(plotH, bins, gutter)
	lines := make([]string, r.height)

	numWorkers := min(runtime.GOMAXPROCS(0), plotH)
	numWorkers = max(numWorkers, 1)

	var wg sync.WaitGroup
	lineJobs := make(chan int, numWorkers)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range lineJobs {
				lines[y] = r.renderLine(frame, y, plotW, plotH, rows, bins, labels[y], gutter)
			}
		}()
	}
	for y := 0; y < plotH; y++ {
		lineJobs <- y
	}
	close(lineJobs)
	wg.Wait()

	if showTime {
		lines[r.height-1] = r.timeLine(plotW, rows, gutter)
	}
	return View{Lines: lines}
}

func (r *Renderer) renderLine(frame *spectrogram.Frame, y, plotW, plotH, rows, bins int, label string, gutter int) string {
	var b strings.Builder
	b.Grow(gutter + plotW*12)
	if gutter > 0 {
		b.WriteString(label)
		b.WriteString(strings.Repeat(" ", gutter-len(label)))
	}

	binHi := bins - y*bins/plotH
	binLo := min(bins-(y+1)*bins/plotH, binHi-1)

	lastColor := -1
	for x := 0; x < plotW; x++ {
		rowLo := x * rows / plotW
		rowHi := max((x+1)*rows/plotW, rowLo+1)

		peak := 0.0
		for i := rowLo; i < rowHi; i++ {
			for _, v := range frame.Row(i)[binLo:binHi] {
				if v > peak {
					peak = v
				}
			}
		}

		if r.useANSI {
			color := r.colormap.ANSI(peak)
			if color != lastColor {
				b.WriteString(precomputedANSI[color])
				lastColor = color
			}
			b.WriteRune('█')
			continue
		}
		idx := clampInt(int(peak*float64(len(intensityRamp)-1)+0.5), 0, len(intensityRamp)-1)
		b.WriteRune(intensityRamp[idx])
	}
	if r.useANSI {
		b.WriteString(resetANSI)
	}
	return b.String()
}

// freqLabels places each frequency tick on the line covering its bin.
func (r *Renderer) freqLabels(plotH, bins, gutter int) []string {
	labels := make([]string, r.height)
	if gutter == 0 {
		return labels
	}
	for _, t := range r.axis.FreqTicks {
		y := plotH - 1 - int(t.Pos/float64(bins)*float64(plotH))
		y = clampInt(y, 0, plotH-1)
		labels[y] = t.Label
	}
	return labels
}

func (r *Renderer) timeLine(plotW, rows, gutter int) string {
	line := []rune(strings.Repeat(" ", gutter+plotW))
	next := gutter
	for _, t := range r.axis.TimeTicks {
		col := gutter + int(t.Pos/float64(rows)*float64(plotW))
		if col < next || col+len(t.Label) > len(line) {
			continue
		}
		copy(line[col:], []rune(t.Label))
		next = col + len(t.Label) + 1
	}
	return string(line)
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}
