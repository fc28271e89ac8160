package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/guidoenr/rfscope/internal/spectrogram"
)

// Stats is a snapshot of scheduler counters, safe to read from any goroutine.
type Stats struct {
	State            string        `json:"state"`
	Ticks            uint64        `json:"ticks"`
	TicksPerSecond   float64       `json:"ticks_per_second"`
	PacketsAbsorbed  uint64        `json:"packets_absorbed"`
	RowsAbsorbed     uint64        `json:"rows_absorbed"`
	OverflowEvents   uint64        `json:"overflow_events"`
	PacketsDiscarded uint64        `json:"packets_discarded"`
	LastOverflow     time.Time     `json:"last_overflow,omitzero"`
	QueueDepth       int           `json:"queue_depth"`
	LastTick         time.Duration `json:"last_tick_ns"`
	Low              float64       `json:"low_db"`
	High             float64       `json:"high_db"`
	Degenerate       bool          `json:"degenerate"`
	Colormap         string        `json:"colormap,omitempty"`
}

// Stats returns the current counters.
func (a *App) Stats() Stats {
	a.statsMu.RLock()
	defer a.statsMu.RUnlock()
	return a.stats
}

func (a *App) setState(s State) {
	a.state.Store(int32(s))
	a.statsMu.Lock()
	a.stats.State = s.String()
	a.statsMu.Unlock()
}

func (a *App) record(packets, rows int, frame *spectrogram.Frame, elapsed time.Duration) {
	depth := a.queue.Len()

	a.metrics.ticks.Inc()
	a.metrics.packets.Add(float64(packets))
	a.metrics.rows.Add(float64(rows))
	a.metrics.queueDepth.Set(float64(depth))
	a.metrics.tickSeconds.Observe(elapsed.Seconds())
	a.metrics.lowPercentile.Set(frame.Low)
	a.metrics.highPercentile.Set(frame.High)

	now := time.Now()
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	a.stats.Ticks++
	a.stats.PacketsAbsorbed += uint64(packets)
	a.stats.RowsAbsorbed += uint64(rows)
	a.stats.QueueDepth = depth
	a.stats.LastTick = elapsed
	a.stats.Low = frame.Low
	a.stats.High = frame.High
	a.stats.Degenerate = frame.Degenerate()

	if a.rateMark.IsZero() {
		a.rateMark = now
		a.rateBase = a.stats.Ticks
		return
	}
	if span := now.Sub(a.rateMark); span >= time.Second {
		a.stats.TicksPerSecond = float64(a.stats.Ticks-a.rateBase) / span.Seconds()
		a.rateMark = now
		a.rateBase = a.stats.Ticks
	}
}

// statusLine summarizes the previous tick for the status bar.
func (a *App) statusLine() string {
	s := a.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "rfscope | %.1f tps | queue %d", s.TicksPerSecond, s.QueueDepth)
	if s.Degenerate {
		b.WriteString(" | flat")
	} else {
		fmt.Fprintf(&b, " | %.1f..%.1f dB", s.Low, s.High)
	}
	if s.OverflowEvents > 0 {
		fmt.Fprintf(&b, " | overflow %d (-%d pkts)", s.OverflowEvents, s.PacketsDiscarded)
	}
	if s.Colormap != "" {
		fmt.Fprintf(&b, " | %s", s.Colormap)
	}
	if a.cfg.Interactive {
		b.WriteString(" | q quit  c colormap  r reset")
	}
	return b.String()
}
