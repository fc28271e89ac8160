package spectrogram

import (
	"sync"
	"testing"
)

func TestDrainOverflowScenario(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 250; i++ {
		q.Push(rampPacket(i, 1, 1))
	}

	packets, evt := DrainPolicy{MaxPackets: 200}.Drain(q)
	if len(packets) != 200 {
		t.Fatalf("drained=%d want=200", len(packets))
	}
	for i, p := range packets {
		if got := p.Rows[0][0]; got != float64(i) {
			t.Fatalf("packet %d carries %f, FIFO order broken", i, got)
		}
	}
	if evt == nil {
		t.Fatalf("expected overflow event")
	}
	if evt.Discarded != 50 || evt.Drained != 200 {
		t.Fatalf("event=%+v want drained=200 discarded=50", *evt)
	}
	if q.Len() != 0 {
		t.Fatalf("queue len=%d want=0", q.Len())
	}
}

func TestDrainEmptyQueue(t *testing.T) {
	packets, evt := DrainPolicy{MaxPackets: 10}.Drain(NewQueue())
	if len(packets) != 0 || evt != nil {
		t.Fatalf("got %d packets, event=%v", len(packets), evt)
	}
}

func TestDrainExactBoundRaisesNothing(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Push(rampPacket(i, 1, 1))
	}
	packets, evt := DrainPolicy{MaxPackets: 5}.Drain(q)
	if len(packets) != 5 || evt != nil {
		t.Fatalf("got %d packets, event=%v", len(packets), evt)
	}
}

func TestDrainOverflowRetainsAtMostBound(t *testing.T) {
	cases := map[int]int{
		1:  0,
		3:  0,
		4:  1,
		9:  6,
		30: 27,
	}
	for queued, discarded := range cases {
		q := NewQueue()
		for i := 0; i < queued; i++ {
			q.Push(rampPacket(2*i, 2, 3))
		}
		packets, evt := DrainPolicy{MaxPackets: 3}.Drain(q)

		buf := NewBuffer(6, 3)
		buf.Absorb(packets)
		if want := min(queued, 3); len(packets) != want {
			t.Fatalf("queued=%d: drained %d packets want %d", queued, len(packets), want)
		}
		// the tail holds the oldest packets in FIFO order, one row per value
		kept := 2 * len(packets)
		for k := 0; k < kept; k++ {
			for j := 0; j < 3; j++ {
				if got := buf.At(6-kept+k, j); got != float64(k) {
					t.Fatalf("queued=%d: buf[%d][%d]=%f want=%d", queued, 6-kept+k, j, got, k)
				}
			}
		}
		if discarded == 0 {
			if evt != nil {
				t.Fatalf("queued=%d: unexpected event %+v", queued, *evt)
			}
			continue
		}
		if evt == nil || evt.Discarded != discarded {
			t.Fatalf("queued=%d: event=%v want discarded=%d", queued, evt, discarded)
		}
	}
}

func TestQueueConcurrentFIFO(t *testing.T) {
	const total = 5000
	q := NewQueue()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			q.Push(rampPacket(i, 1, 1))
		}
	}()

	next := 0
	for next < total {
		p, ok := q.Pop()
		if !ok {
			continue
		}
		if got := int(p.Rows[0][0]); got != next {
			t.Fatalf("popped %d want %d", got, next)
		}
		next++
	}
	wg.Wait()
	if _, ok := q.Pop(); ok {
		t.Fatalf("queue should be empty")
	}
}

func TestQueueCompaction(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 300; i++ {
		q.Push(rampPacket(i, 1, 1))
	}
	for i := 0; i < 200; i++ {
		if _, ok := q.Pop(); !ok {
			t.Fatalf("pop %d failed", i)
		}
	}
	q.Push(rampPacket(300, 1, 1))
	if q.Len() != 101 {
		t.Fatalf("len=%d want=101", q.Len())
	}
	p, _ := q.Pop()
	if p.Rows[0][0] != 200 {
		t.Fatalf("head=%f want=200", p.Rows[0][0])
	}
}
