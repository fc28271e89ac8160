package spectrogram

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultLowPercentile  = 2
	defaultHighPercentile = 98
)

// Frame is a contrast-stretched copy of the buffer with every value in [0, 1].
// Sinks render it with fixed Levels and must not rescale it.
type Frame struct {
	Data   *mat.Dense
	Low    float64
	High   float64
	Levels [2]float64
}

// Rows returns the number of time slices in the frame.
func (f *Frame) Rows() int {
	r, _ := f.Data.Dims()
	return r
}

// Bins returns the number of frequency bins in the frame.
func (f *Frame) Bins() int {
	_, c := f.Data.Dims()
	return c
}

// At returns the normalized value at time slice i, bin j.
func (f *Frame) At(i, j int) float64 { return f.Data.At(i, j) }

// Row returns a view of time slice i.
func (f *Frame) Row(i int) []float64 { return f.Data.RawRowView(i) }

// Degenerate reports whether the buffer was flat when the frame was built.
func (f *Frame) Degenerate() bool { return f.High == f.Low }

// Normalizer maps a buffer into [0, 1] using a percentile contrast stretch
// recomputed over the whole buffer on every call. The returned frame and its
// storage are reused and stay valid until the next Normalize.
type Normalizer struct {
	LowPercentile  float64
	HighPercentile float64

	scratch []float64
	frame   *Frame
}

// NewNormalizer returns a 2nd/98th percentile normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		LowPercentile:  defaultLowPercentile,
		HighPercentile: defaultHighPercentile,
	}
}

// Normalize builds the display frame for buf.
func (n *Normalizer) Normalize(buf *Buffer) *Frame {
	values := buf.Values()
	if cap(n.scratch) < len(values) {
		n.scratch = make([]float64, len(values))
	}
	n.scratch = n.scratch[:len(values)]
	copy(n.scratch, values)

	lowP, highP := n.LowPercentile, n.HighPercentile
	if lowP == 0 && highP == 0 {
		lowP, highP = defaultLowPercentile, defaultHighPercentile
	}
	lo, hi := percentilePair(n.scratch, lowP, highP)

	if n.frame == nil || n.frame.Rows() != buf.Rows() || n.frame.Bins() != buf.Bins() {
		n.frame = &Frame{
			Data:   mat.NewDense(buf.Rows(), buf.Bins(), nil),
			Levels: [2]float64{0, 1},
		}
	}
	n.frame.Low = lo
	n.frame.High = hi

	out := n.frame.Data.RawMatrix().Data
	if hi == lo {
		clear(out)
		return n.frame
	}
	scale := 1 / (hi - lo)
	for i, v := range values {
		out[i] = clamp01((v - lo) * scale)
	}
	return n.frame
}

// Percentile returns the p-th percentile of values using linear interpolation
// between order statistics at position p/100*(len-1). values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		panic("spectrogram: percentile of empty slice")
	}
	scratch := make([]float64, len(values))
	copy(scratch, values)
	v, _ := percentilePair(scratch, p, p)
	return v
}

// percentilePair computes two percentiles (lowP <= highP) by selection,
// reordering a in place.
func percentilePair(a []float64, lowP, highP float64) (float64, float64) {
	if lowP < 0 || highP > 100 || lowP > highP {
		panic(fmt.Sprintf("spectrogram: invalid percentiles %v/%v", lowP, highP))
	}
	lowIdx, lowFrac := rank(len(a), lowP)
	low := interpolatedAt(a, lowIdx, lowFrac)

	highIdx, highFrac := rank(len(a), highP)
	high := interpolatedAt(a[lowIdx:], highIdx-lowIdx, highFrac)
	return low, high
}

func rank(m int, p float64) (int, float64) {
	pos := p / 100 * float64(m-1)
	idx := int(math.Floor(pos))
	if idx >= m-1 {
		return m - 1, 0
	}
	return idx, pos - float64(idx)
}

// interpolatedAt leaves a partitioned around k and returns the value at the
// fractional order statistic k+frac.
func interpolatedAt(a []float64, k int, frac float64) float64 {
	v := selectKth(a, k)
	if frac == 0 || k+1 >= len(a) {
		return v
	}
	next := a[k+1]
	for _, x := range a[k+2:] {
		if x < next {
			next = x
		}
	}
	return v + frac*(next-v)
}

// selectKth places the k-th smallest element at a[k] with smaller or equal
// elements before it and greater or equal ones after it.
func selectKth(a []float64, k int) float64 {
	lo, hi := 0, len(a)-1
	for lo < hi {
		mid := lo + (hi-lo)/2
		if a[mid] < a[lo] {
			a[mid], a[lo] = a[lo], a[mid]
		}
		if a[hi] < a[lo] {
			a[hi], a[lo] = a[lo], a[hi]
		}
		if a[hi] < a[mid] {
			a[hi], a[mid] = a[mid], a[hi]
		}
		pivot := a[mid]

		i, j := lo, hi
		for i <= j {
			for a[i] < pivot {
				i++
			}
			for a[j] > pivot {
				j--
			}
			if i <= j {
				a[i], a[j] = a[j], a[i]
				i++
				j--
			}
		}
		switch {
		case k <= j:
			hi = j
		case k >= i:
			lo = i
		default:
			return a[k]
		}
	}
	return a[k]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
