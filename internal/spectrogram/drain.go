package spectrogram

// Source is the consumer side of an acquisition queue.
type Source interface {
	Len() int
	Pop() (Packet, bool)
}

// OverflowEvent reports that the consumer fell behind and the unread backlog
// was thrown away.
type OverflowEvent struct {
	Drained   int
	Discarded int
}

// DrainPolicy pulls at most MaxPackets per tick. When more are waiting, the
// whole remaining backlog is discarded so the display stays fresh.
type DrainPolicy struct {
	MaxPackets int
}

// Drain removes up to MaxPackets packets in FIFO order. It never blocks; an
// empty queue yields no packets and no event. The returned event is nil
// unless at least one packet was discarded.
func (d DrainPolicy) Drain(src Source) ([]Packet, *OverflowEvent) {
	if d.MaxPackets <= 0 {
		panic("spectrogram: drain bound must be positive")
	}

	var packets []Packet
	for len(packets) < d.MaxPackets && src.Len() != 0 {
		p, ok := src.Pop()
		if !ok {
			break
		}
		packets = append(packets, p)
	}

	discarded := 0
	for src.Len() != 0 {
		if _, ok := src.Pop(); !ok {
			break
		}
		discarded++
	}
	if discarded == 0 {
		return packets, nil
	}
	return packets, &OverflowEvent{Drained: len(packets), Discarded: discarded}
}
