package acquisition

import (
	"math"
	"math/rand"
	"time"

	"github.com/guidoenr/rfscope/internal/spectrogram"
)

// SyntheticConfig controls the simulated 2.4 GHz band.
type SyntheticConfig struct {
	Bins        int
	PacketRows  int
	RowInterval time.Duration
	// Speed multiplies the production rate; values above 1 overload the renderer.
	Speed float64
	Seed  int64
}

// Synthetic produces packets of a simulated ISM band: a drifting noise floor,
// frequency-hopping narrowband carriers and bursty wideband channels. It is
// paced like hardware, one packet every PacketRows*RowInterval.
type Synthetic struct {
	worker

	cfg      SyntheticConfig
	interval time.Duration
	rng      *rand.Rand

	row       int
	driftPh   float64
	hopBins   []int
	burstLeft []int
}

var wideChannels = []float64{0.15, 0.45, 0.75}

// NewSynthetic builds a synthetic producer. It does not start producing until Start.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.Bins <= 0 {
		cfg.Bins = 512
	}
	if cfg.PacketRows <= 0 {
		cfg.PacketRows = 10
	}
	if cfg.RowInterval <= 0 {
		cfg.RowInterval = time.Millisecond
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	s := &Synthetic{
		cfg:       cfg,
		interval:  time.Duration(float64(cfg.RowInterval) * float64(cfg.PacketRows) / cfg.Speed),
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		hopBins:   make([]int, 3),
		burstLeft: make([]int, len(wideChannels)),
	}
	s.worker.init()
	for i := range s.hopBins {
		s.hopBins[i] = s.rng.Intn(cfg.Bins)
	}
	return s
}

// Start launches the producer goroutine.
func (s *Synthetic) Start() error {
	if err := s.begin(); err != nil {
		return err
	}
	go s.run()
	return nil
}

func (s *Synthetic) run() {
	defer s.finish(nil)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	next := time.Now()

	for s.alive.Load() {
		s.queue.Push(s.nextPacket())

		next = next.Add(s.interval)
		wait := time.Until(next)
		if wait <= 0 {
			// fell behind the nominal rate; resynchronise instead of bursting
			if wait < -s.interval {
				next = time.Now()
			}
			continue
		}
		timer.Reset(wait)
		select {
		case <-s.stop:
			return
		case <-timer.C:
		}
	}
}

func (s *Synthetic) nextPacket() spectrogram.Packet {
	rows := make([][]float64, s.cfg.PacketRows)
	for i := range rows {
		rows[i] = s.nextRow()
	}
	return spectrogram.NewPacket(rows, s.cfg.Bins)
}

func (s *Synthetic) nextRow() []float64 {
	bins := s.cfg.Bins
	s.row++
	s.driftPh += 0.0007

	floor := -95 + 3*math.Sin(s.driftPh)
	row := make([]float64, bins)
	for j := range row {
		row[j] = floor + s.rng.NormFloat64()*2
	}

	// narrowband hoppers retune every 8 rows
	if s.row%8 == 0 {
		for i := range s.hopBins {
			s.hopBins[i] = s.rng.Intn(bins)
		}
	}
	for _, b := range s.hopBins {
		addPeak(row, b, 1, 32+s.rng.Float64()*4)
	}

	width := max(1, bins/8)
	for i, center := range wideChannels {
		if s.burstLeft[i] == 0 && s.rng.Float64() < 0.01 {
			s.burstLeft[i] = 20 + s.rng.Intn(120)
		}
		if s.burstLeft[i] == 0 {
			continue
		}
		s.burstLeft[i]--
		c := int(center * float64(bins))
		for j := c - width/2; j < c+width/2; j++ {
			if j < 0 || j >= bins {
				continue
			}
			edge := math.Abs(float64(j-c)) / float64(width/2+1)
			row[j] = math.Max(row[j], floor+22*(1-edge*edge)+s.rng.NormFloat64()*1.5)
		}
	}
	return row
}

func addPeak(row []float64, center, halfWidth int, gainDB float64) {
	for j := center - halfWidth; j <= center+halfWidth; j++ {
		if j < 0 || j >= len(row) {
			continue
		}
		row[j] += gainDB
	}
}
