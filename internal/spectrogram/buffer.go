package spectrogram

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Buffer is the rolling time x frequency matrix behind the display. It always
// holds exactly Rows() time slices; the newest ones sit at the bottom.
type Buffer struct {
	m    *mat.Dense
	data []float64
	rows int
	bins int
}

// NewBuffer allocates a zeroed rows x bins buffer.
func NewBuffer(rows, bins int) *Buffer {
	if rows <= 0 || bins <= 0 {
		panic(fmt.Sprintf("spectrogram: invalid buffer shape %dx%d", rows, bins))
	}
	m := mat.NewDense(rows, bins, nil)
	return &Buffer{
		m:    m,
		data: m.RawMatrix().Data,
		rows: rows,
		bins: bins,
	}
}

// Rows returns the retained time depth.
func (b *Buffer) Rows() int { return b.rows }

// Bins returns the number of frequency bins per row.
func (b *Buffer) Bins() int { return b.bins }

// At returns the value at time slice i, bin j.
func (b *Buffer) At(i, j int) float64 { return b.m.At(i, j) }

// Row returns a view of time slice i. Callers must not modify it.
func (b *Buffer) Row(i int) []float64 { return b.m.RawRowView(i) }

// Matrix exposes the buffer as a read-only gonum matrix.
func (b *Buffer) Matrix() mat.Matrix { return b.m }

// Values returns the backing row-major storage. Callers must not modify it.
func (b *Buffer) Values() []float64 { return b.data }

// Reset zeroes every entry.
func (b *Buffer) Reset() {
	b.m.Zero()
}

// Absorb shifts the oldest rows out and appends the rows of packets in order.
// It returns the number of rows written. An empty batch leaves the buffer
// untouched. When the batch holds more rows than the buffer, only the most
// recent Rows() of them are kept.
func (b *Buffer) Absorb(packets []Packet) int {
	n := 0
	for _, p := range packets {
		for i, row := range p.Rows {
			if len(row) != b.bins {
				panic(fmt.Sprintf("spectrogram: absorbed row %d has %d bins, want %d", i, len(row), b.bins))
			}
		}
		n += p.Len()
	}
	if n == 0 {
		return 0
	}

	skip := 0
	if n >= b.rows {
		skip = n - b.rows
	} else {
		copy(b.data, b.data[n*b.bins:])
	}

	dst := b.rows - min(n, b.rows)
	for _, p := range packets {
		for _, row := range p.Rows {
			if skip > 0 {
				skip--
				continue
			}
			copy(b.data[dst*b.bins:(dst+1)*b.bins], row)
			dst++
		}
	}
	return min(n, b.rows)
}
