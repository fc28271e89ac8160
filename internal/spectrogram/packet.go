package spectrogram

import "fmt"

// Packet is a batch of consecutive FFT rows. Every row has the same number of
// frequency bins. A packet must not be modified once it has been pushed.
type Packet struct {
	Rows [][]float64
}

// NewPacket wraps rows into a Packet, panicking when a row does not carry
// exactly bins values.
func NewPacket(rows [][]float64, bins int) Packet {
	for i, row := range rows {
		if len(row) != bins {
			panic(fmt.Sprintf("spectrogram: packet row %d has %d bins, want %d", i, len(row), bins))
		}
	}
	return Packet{Rows: rows}
}

// Len returns the number of time slices carried by the packet.
func (p Packet) Len() int {
	return len(p.Rows)
}
