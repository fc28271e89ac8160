package app

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guidoenr/rfscope/internal/acquisition"
	"github.com/guidoenr/rfscope/internal/config"
	"github.com/guidoenr/rfscope/internal/render"
	"github.com/guidoenr/rfscope/internal/spectrogram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeChannel struct {
	queue   *spectrogram.Queue
	mu      sync.Mutex
	started bool
	stopped bool
	stuck   bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{queue: spectrogram.NewQueue()}
}

func (c *fakeChannel) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	return nil
}

func (c *fakeChannel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *fakeChannel) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started && !c.stopped
}

func (c *fakeChannel) Wait(ctx context.Context) error {
	if !c.stuck {
		return nil
	}
	<-ctx.Done()
	return acquisition.ErrStopTimeout
}

func (c *fakeChannel) Queue() *spectrogram.Queue { return c.queue }

type recordingSink struct {
	mu       sync.Mutex
	frames   int
	statuses []string
	last     [][]float64
	onFrame  func(n int) error
	closed   bool
	colormap string
}

func (s *recordingSink) Display(frame *spectrogram.Frame, status string) error {
	s.mu.Lock()
	s.frames++
	n := s.frames
	s.statuses = append(s.statuses, status)
	s.last = s.last[:0]
	for i := 0; i < frame.Rows(); i++ {
		s.last = append(s.last, append([]float64(nil), frame.Row(i)...))
	}
	s.mu.Unlock()
	if s.onFrame != nil {
		return s.onFrame(n)
	}
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func (s *recordingSink) SetColormap(name string) { s.colormap = name }
func (s *recordingSink) ColormapName() string    { return s.colormap }

func testSettings() config.Config {
	cfg := config.Defaults()
	cfg.ScreenFFTs = 20
	cfg.ScreenPackets = 4
	cfg.Bins = 4
	return cfg
}

func packet(rows int, value float64) spectrogram.Packet {
	rs := make([][]float64, rows)
	for i := range rs {
		rs[i] = make([]float64, 4)
		for j := range rs[i] {
			rs[i][j] = value
		}
	}
	return spectrogram.NewPacket(rs, 4)
}

func newTestApp(t *testing.T, ch *fakeChannel, sink render.Sink, logs *bytes.Buffer) *App {
	t.Helper()
	if logs == nil {
		logs = &bytes.Buffer{}
	}
	a, err := New(Config{
		Settings: testSettings(),
		Channel:  ch,
		Sink:     sink,
		Registry: prometheus.NewRegistry(),
		Log:      log.New(logs, "", 0),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func TestNewStartsChannel(t *testing.T) {
	ch := newFakeChannel()
	a := newTestApp(t, ch, &recordingSink{}, nil)
	if !ch.Alive() {
		t.Fatalf("channel must be started by New")
	}
	if a.State() != StateStopped {
		t.Fatalf("state before Run=%v", a.State())
	}
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	cfg := testSettings()
	cfg.ScreenPackets = 3
	_, err := New(Config{Settings: cfg, Channel: newFakeChannel()})
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("err=%v want ErrInvalidConfig", err)
	}
}

func TestTickAbsorbsQueuedPackets(t *testing.T) {
	ch := newFakeChannel()
	sink := &recordingSink{}
	a := newTestApp(t, ch, sink, nil)

	ch.queue.Push(packet(5, 1))
	ch.queue.Push(packet(5, 3))
	if err := a.tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if sink.frames != 1 {
		t.Fatalf("frames=%d want=1", sink.frames)
	}
	if got := a.buffer.At(19, 0); got != 3 {
		t.Fatalf("newest row=%f want=3", got)
	}
	if got := a.buffer.At(14, 0); got != 1 {
		t.Fatalf("older row=%f want=1", got)
	}
	if got := a.buffer.At(9, 0); got != 0 {
		t.Fatalf("untouched row=%f want=0", got)
	}
	st := a.Stats()
	if st.Ticks != 1 || st.PacketsAbsorbed != 2 || st.RowsAbsorbed != 10 || st.QueueDepth != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if got := testutil.ToFloat64(a.metrics.rows); got != 10 {
		t.Fatalf("rows metric=%f want=10", got)
	}
	for _, row := range sink.last[15:] {
		if row[0] != 1 {
			t.Fatalf("newest rows must normalize to 1, got %v", row)
		}
	}
}

func TestTickWithEmptyQueueStillDisplays(t *testing.T) {
	ch := newFakeChannel()
	sink := &recordingSink{}
	a := newTestApp(t, ch, sink, nil)

	for i := 0; i < 3; i++ {
		if err := a.tick(); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	if sink.frames != 3 {
		t.Fatalf("frames=%d want=3", sink.frames)
	}
	if !a.Stats().Degenerate {
		t.Fatalf("an all-zero buffer must produce a degenerate frame")
	}
	for _, row := range sink.last {
		for _, v := range row {
			if v != 0 {
				t.Fatalf("flat buffer must normalize to zeros")
			}
		}
	}
}

func TestTickDiscardsBacklogOnOverflow(t *testing.T) {
	ch := newFakeChannel()
	var logs bytes.Buffer
	a := newTestApp(t, ch, &recordingSink{}, &logs)

	for i := 0; i < 7; i++ {
		ch.queue.Push(packet(5, float64(i)))
	}
	if err := a.tick(); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if ch.queue.Len() != 0 {
		t.Fatalf("backlog must be discarded, %d left", ch.queue.Len())
	}
	st := a.Stats()
	if st.OverflowEvents != 1 || st.PacketsDiscarded != 3 || st.PacketsAbsorbed != 4 {
		t.Fatalf("unexpected stats %+v", st)
	}
	// the four oldest packets were kept
	if got := a.buffer.At(19, 0); got != 3 {
		t.Fatalf("newest row=%f want=3", got)
	}
	if got := testutil.ToFloat64(a.metrics.discarded); got != 3 {
		t.Fatalf("discarded metric=%f want=3", got)
	}
	if !strings.Contains(logs.String(), "discarded 3") {
		t.Fatalf("missing overflow warning in %q", logs.String())
	}

	if !strings.Contains(a.statusLine(), "overflow 1") {
		t.Fatalf("status line %q does not report the overflow", a.statusLine())
	}
}

func TestRunUntilCancelled(t *testing.T) {
	ch := newFakeChannel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	sink.onFrame = func(n int) error {
		if n == 5 {
			cancel()
		}
		return nil
	}
	a := newTestApp(t, ch, sink, nil)

	err := a.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run err=%v want context.Canceled", err)
	}
	if sink.frames < 5 {
		t.Fatalf("frames=%d want at least 5", sink.frames)
	}
	if a.State() != StateStopped {
		t.Fatalf("state after Run=%v", a.State())
	}
}

func TestRunObservesRunningState(t *testing.T) {
	ch := newFakeChannel()
	var a *App
	var seen State
	sink := &recordingSink{}
	sink.onFrame = func(int) error {
		seen = a.State()
		return render.ErrQuit
	}
	a = newTestApp(t, ch, sink, nil)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("a quitting display must end Run cleanly, got %v", err)
	}
	if seen != StateRunning {
		t.Fatalf("state during tick=%v want running", seen)
	}
	if got := a.Stats().State; got != "stopped" {
		t.Fatalf("stats state=%q", got)
	}
}

func TestRunPacedByTargetFPS(t *testing.T) {
	ch := newFakeChannel()
	cfg := testSettings()
	cfg.TargetFPS = 100

	sink := &recordingSink{}
	sink.onFrame = func(n int) error {
		if n == 3 {
			return render.ErrQuit
		}
		return nil
	}
	a, err := New(Config{Settings: cfg, Channel: ch, Sink: sink, Log: log.New(&bytes.Buffer{}, "", 0)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	start := time.Now()
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("three ticks at 100 fps took only %v", elapsed)
	}
}

func TestRunPropagatesDisplayErrors(t *testing.T) {
	boom := errors.New("boom")
	sink := &recordingSink{onFrame: func(int) error { return boom }}
	a := newTestApp(t, newFakeChannel(), sink, nil)

	if err := a.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
}

func TestCloseStopsChannelAndSink(t *testing.T) {
	ch := newFakeChannel()
	sink := &recordingSink{}
	a := newTestApp(t, ch, sink, nil)

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if ch.Alive() {
		t.Fatalf("channel still alive after Close")
	}
	if !sink.closed {
		t.Fatalf("sink not closed")
	}
}

func TestCloseReportsStopTimeout(t *testing.T) {
	ch := newFakeChannel()
	ch.stuck = true
	a := newTestApp(t, ch, &recordingSink{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := a.Close(ctx); !errors.Is(err, acquisition.ErrStopTimeout) {
		t.Fatalf("err=%v want ErrStopTimeout", err)
	}
}

func TestInputCyclesColormapAndResets(t *testing.T) {
	ch := newFakeChannel()
	sink := &recordingSink{colormap: "magma"}
	a := newTestApp(t, ch, render.Tee{sink}, nil)

	a.handleInput(inputEventColormap, true)
	if sink.colormap != "viridis" {
		t.Fatalf("colormap=%q want viridis after magma", sink.colormap)
	}
	a.handleInput(inputEventColormap, true)
	if sink.colormap != "gray" {
		t.Fatalf("colormap=%q want wrap-around to gray", sink.colormap)
	}

	ch.queue.Push(packet(5, 7))
	_ = a.tick()
	a.handleInput(inputEventReset, true)
	if got := a.buffer.At(19, 0); got != 0 {
		t.Fatalf("reset left %f in the buffer", got)
	}
	if !a.handleInput(inputEventQuit, true) {
		t.Fatalf("quit event must end the loop")
	}
}

func TestProfilerWritesOneRowPerTick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.csv")
	cfg := testSettings()
	cfg.ProfilePath = path
	a, err := New(Config{Settings: cfg, Channel: newFakeChannel(), Log: log.New(&bytes.Buffer{}, "", 0)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 3; i++ {
		_ = a.tick()
	}
	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 || lines[0] != profileHeader {
		t.Fatalf("unexpected profile:\n%s", data)
	}
	if !strings.HasPrefix(lines[3], "3,") {
		t.Fatalf("last row=%q", lines[3])
	}
}
