package app

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"time"
)

type section int

const (
	sectionDrain section = iota
	sectionAbsorb
	sectionNormalize
	sectionDisplay
	numSections
)

// profiler writes one CSV row per tick with the time spent in each stage.
// It is used only from the scheduler goroutine.
type profiler struct {
	file   *os.File
	w      *bufio.Writer
	logger *log.Logger
	tick   uint64
	start  time.Time
	last   time.Time
	spent  [numSections]time.Duration
}

const profileHeader = "tick,drain_ms,absorb_ms,normalize_ms,display_ms,total_ms"

func newProfiler(path string, logger *log.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		if logger != nil {
			logger.Printf("profiler disabled: %v", err)
		}
		return nil
	}
	p := &profiler{
		file:   f,
		w:      bufio.NewWriter(f),
		logger: logger,
	}
	fmt.Fprintln(p.w, profileHeader)
	return p
}

func (p *profiler) beginTick(now time.Time) {
	if p == nil {
		return
	}
	p.start = now
	p.last = now
	p.spent = [numSections]time.Duration{}
}

func (p *profiler) mark(s section) {
	if p == nil {
		return
	}
	now := time.Now()
	p.spent[s] += now.Sub(p.last)
	p.last = now
}

func (p *profiler) endTick() {
	if p == nil {
		return
	}
	p.tick++
	fmt.Fprintf(p.w, "%d,%.3f,%.3f,%.3f,%.3f,%.3f\n",
		p.tick,
		ms(p.spent[sectionDrain]),
		ms(p.spent[sectionAbsorb]),
		ms(p.spent[sectionNormalize]),
		ms(p.spent[sectionDisplay]),
		ms(p.last.Sub(p.start)),
	)
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	if err := p.w.Flush(); err != nil {
		p.file.Close()
		return fmt.Errorf("flush profile: %w", err)
	}
	return p.file.Close()
}

func ms(d time.Duration) float64 {
	return d.Seconds() * 1000
}
