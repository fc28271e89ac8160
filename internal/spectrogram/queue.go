package spectrogram

import "sync"

// Queue is an unbounded FIFO of packets shared between one producer and one
// consumer. Push, Len and Pop never block on each other for longer than a
// slice operation.
type Queue struct {
	mu    sync.Mutex
	items []Packet
	head  int
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends a packet at the tail.
func (q *Queue) Push(p Packet) {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()
}

// Len reports how many packets are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Pop removes the oldest packet. It returns false when the queue is empty.
func (q *Queue) Pop() (Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return Packet{}, false
	}
	p := q.items[q.head]
	q.items[q.head] = Packet{}
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 64 && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return p, true
}
