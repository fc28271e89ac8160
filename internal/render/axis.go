package render

import (
	"fmt"

	"github.com/guidoenr/rfscope/internal/config"
)

const timeTickDivisions = 16

// Tick is an axis label anchored at a buffer row (time) or bin (frequency).
type Tick struct {
	Pos   float64
	Label string
}

// Axis carries the tick labels for both spectrogram axes. It is labelling
// only; nothing in the buffer or normalizer depends on it.
type Axis struct {
	Rows      int
	Bins      int
	TimeTicks []Tick
	FreqTicks []Tick
	TimeUnit  string
	FreqUnit  string
}

// NewAxis derives time ticks every Rows/16 rows in seconds and evenly spaced
// frequency ticks in GHz from the hardware constants.
func NewAxis(cfg config.Config) Axis {
	ax := Axis{
		Rows:     cfg.ScreenFFTs,
		Bins:     cfg.Bins,
		TimeUnit: "s",
		FreqUnit: "GHz",
	}

	step := max(1, cfg.ScreenFFTs/timeTickDivisions)
	rowSeconds := cfg.TimePerRow().Seconds()
	for i := 0; i < cfg.ScreenFFTs; i += step {
		ax.TimeTicks = append(ax.TimeTicks, Tick{
			Pos:   float64(i),
			Label: fmt.Sprintf("%.1f", float64(i)*rowSeconds),
		})
	}

	n := max(2, cfg.FreqTicks)
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)
		hz := cfg.FreqStartHz + frac*(cfg.FreqStopHz-cfg.FreqStartHz)
		ax.FreqTicks = append(ax.FreqTicks, Tick{
			Pos:   frac * float64(cfg.Bins),
			Label: fmt.Sprintf("%.2f", hz/1e9),
		})
	}
	return ax
}

// gutterWidth is the widest frequency label plus one space.
func (a Axis) gutterWidth() int {
	w := 0
	for _, t := range a.FreqTicks {
		w = max(w, len(t.Label))
	}
	if w == 0 {
		return 0
	}
	return w + 1
}
