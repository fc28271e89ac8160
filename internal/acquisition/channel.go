// Package acquisition provides the producers that feed FFT packets into the
// spectrogram queue. Each producer owns one goroutine (or a driver callback)
// that only pushes, governed by a cooperative alive flag and joined on stop.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/guidoenr/rfscope/internal/spectrogram"
)

var (
	// ErrStopTimeout is returned by Wait when the producer did not exit before
	// the context ended. The producer may still own hardware at that point.
	ErrStopTimeout = errors.New("acquisition did not stop in time")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("acquisition already started")
)

// Channel is a background producer of FFT packets.
type Channel interface {
	// Start launches the producer.
	Start() error
	// Stop clears the alive flag; the producer exits at its next poll.
	Stop()
	// Alive reports whether the producer has been asked to keep running.
	Alive() bool
	// Wait blocks until the producer has exited or ctx ends.
	Wait(ctx context.Context) error
	// Queue is the output queue; the caller is its only consumer.
	Queue() *spectrogram.Queue
}

// worker carries the lifecycle shared by every producer.
type worker struct {
	queue   *spectrogram.Queue
	alive   atomic.Bool
	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	stopOnce sync.Once
	doneOnce sync.Once
	errMu    sync.Mutex
	err      error
}

func (w *worker) init() {
	w.queue = spectrogram.NewQueue()
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
}

func (w *worker) begin() error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	w.alive.Store(true)
	return nil
}

// Stop asks the producer to exit.
func (w *worker) Stop() {
	w.alive.Store(false)
	w.stopOnce.Do(func() { close(w.stop) })
}

// Alive reports the current value of the keep-running flag.
func (w *worker) Alive() bool {
	return w.alive.Load()
}

// Queue returns the producer's output queue.
func (w *worker) Queue() *spectrogram.Queue {
	return w.queue
}

// Wait joins the producer. A producer that was never started counts as exited.
func (w *worker) Wait(ctx context.Context) error {
	if !w.started.Load() {
		return nil
	}
	select {
	case <-w.done:
		w.errMu.Lock()
		defer w.errMu.Unlock()
		return w.err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrStopTimeout, ctx.Err())
	}
}

func (w *worker) finish(err error) {
	w.doneOnce.Do(func() {
		w.errMu.Lock()
		w.err = err
		w.errMu.Unlock()
		w.alive.Store(false)
		close(w.done)
	})
}
