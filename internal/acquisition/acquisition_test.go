package acquisition

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSyntheticProducesWellFormedPackets(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{
		Bins:        64,
		PacketRows:  5,
		RowInterval: 100 * time.Microsecond,
		Seed:        1,
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.Alive() {
		t.Fatalf("expected producer to be alive after start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Queue().Len() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("producer queued only %d packets", s.Queue().Len())
		}
		time.Sleep(time.Millisecond)
	}

	s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if s.Alive() {
		t.Fatalf("producer still alive after wait")
	}

	for s.Queue().Len() > 0 {
		p, _ := s.Queue().Pop()
		if p.Len() != 5 {
			t.Fatalf("packet rows=%d want=5", p.Len())
		}
		for _, row := range p.Rows {
			if len(row) != 64 {
				t.Fatalf("row bins=%d want=64", len(row))
			}
		}
	}
}

func TestSyntheticStartTwice(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{Bins: 8, PacketRows: 1, RowInterval: time.Millisecond})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if err := s.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second start err=%v want ErrAlreadyStarted", err)
	}
}

func TestSyntheticSpeedShortensInterval(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{Bins: 8, PacketRows: 10, RowInterval: time.Millisecond, Speed: 4})
	if s.interval != 2500*time.Microsecond {
		t.Fatalf("interval=%v want=2.5ms", s.interval)
	}
}

func TestWaitBeforeStartReturnsImmediately(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{Bins: 8})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait on idle producer: %v", err)
	}
}

func TestWaitTimesOutOnStuckProducer(t *testing.T) {
	var w worker
	w.init()
	if err := w.begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	w.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := w.Wait(ctx); !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("err=%v want ErrStopTimeout", err)
	}

	w.finish(nil)
	if err := w.Wait(context.Background()); err != nil {
		t.Fatalf("wait after finish: %v", err)
	}
}

func TestWaitReportsProducerError(t *testing.T) {
	var w worker
	w.init()
	_ = w.begin()
	boom := errors.New("close stream: boom")
	w.finish(boom)
	if err := w.Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
}
