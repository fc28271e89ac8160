package analyzer

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const defaultFloorDB = -150.0

// Analyzer turns blocks of time-domain samples into spectrogram rows: one
// Hann-windowed real FFT of 2*Bins samples yields Bins magnitudes in dB.
type Analyzer struct {
	bins    int
	floorDB float64

	window []float64
	input  []float64
	norm   float64
}

// Config controls Analyzer behavior.
type Config struct {
	Bins    int
	FloorDB float64
}

// New creates an Analyzer. Bins is rounded up to a power of two.
func New(cfg Config) *Analyzer {
	if cfg.Bins <= 0 {
		cfg.Bins = 512
	}
	if cfg.FloorDB == 0 {
		cfg.FloorDB = defaultFloorDB
	}
	bins := nextPow2(cfg.Bins)
	a := &Analyzer{
		bins:    bins,
		floorDB: cfg.FloorDB,
	}
	a.ensureWorkspace(bins * 2)
	return a
}

// Bins returns the number of values produced per row.
func (a *Analyzer) Bins() int {
	return a.bins
}

// BlockSize returns how many samples feed one row.
func (a *Analyzer) BlockSize() int {
	return a.bins * 2
}

// Row computes one spectrogram row from samples. Short input is zero-padded;
// extra samples are ignored.
func (a *Analyzer) Row(samples []float32) []float64 {
	size := a.BlockSize()
	for i := 0; i < size; i++ {
		if i < len(samples) {
			a.input[i] = float64(samples[i]) * a.window[i]
			continue
		}
		a.input[i] = 0
	}

	spectrum := fft.FFTReal(a.input)

	row := make([]float64, a.bins)
	for i := range row {
		row[i] = toDecibels(cmag(spectrum[i])/a.norm, a.floorDB)
	}
	return row
}

func (a *Analyzer) ensureWorkspace(size int) {
	if len(a.input) != size {
		a.input = make([]float64, size)
	}
	if len(a.window) != size {
		a.window = make([]float64, size)
		sizeF := float64(size)
		sum := 0.0
		for i := range a.window {
			a.window[i] = hann(float64(i), sizeF)
			sum += a.window[i]
		}
		// a full-scale sine lands at 0 dB
		a.norm = sum / 2
	}
}

func cmag(c complex128) float64 {
	return math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
}
