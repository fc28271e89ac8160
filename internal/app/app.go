package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/rfscope/internal/acquisition"
	"github.com/guidoenr/rfscope/internal/config"
	"github.com/guidoenr/rfscope/internal/render"
	"github.com/guidoenr/rfscope/internal/spectrogram"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrRunning is returned by Run while another Run is active.
var ErrRunning = errors.New("scheduler already running")

// Config configures the application runtime.
type Config struct {
	Settings config.Config
	Channel  acquisition.Channel
	Sink     render.Sink
	// Registry receives the pipeline metrics; nil keeps them unregistered.
	Registry prometheus.Registerer
	// Interactive enables keyboard control (q quit, c colormap, r reset).
	Interactive bool
	Log         *log.Logger
}

// State is the scheduler lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

type inputEvent int

const (
	inputEventQuit inputEvent = iota
	inputEventColormap
	inputEventReset
)

// App ties acquisition, the rolling buffer, normalization and display
// together. All pipeline work happens on the goroutine calling Run.
type App struct {
	cfg        Config
	settings   config.Config
	channel    acquisition.Channel
	queue      *spectrogram.Queue
	drain      spectrogram.DrainPolicy
	buffer     *spectrogram.Buffer
	normalizer *spectrogram.Normalizer
	sink       render.Sink
	metrics    *metrics
	profiler   *profiler
	log        *log.Logger

	state       atomic.Int32
	inputEvents chan inputEvent
	colormaps   []string

	statsMu  sync.RWMutex
	stats    Stats
	rateMark time.Time
	rateBase uint64
}

// New constructs the application and starts the acquisition channel.
func New(cfg Config) (*App, error) {
	if cfg.Log == nil {
		cfg.Log = log.New(os.Stdout, "", log.LstdFlags)
	}
	if cfg.Channel == nil {
		return nil, errors.New("app: acquisition channel is required")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	sink := cfg.Sink
	if sink == nil {
		sink = discardSink{}
	}

	s := cfg.Settings
	a := &App{
		cfg:        cfg,
		settings:   s,
		channel:    cfg.Channel,
		queue:      cfg.Channel.Queue(),
		drain:      spectrogram.DrainPolicy{MaxPackets: s.ScreenPackets},
		buffer:     spectrogram.NewBuffer(s.ScreenFFTs, s.Bins),
		normalizer: spectrogram.NewNormalizer(),
		sink:       sink,
		metrics:    newMetrics(cfg.Registry),
		log:        cfg.Log,
		colormaps:  render.ColormapNames(),
	}
	a.stats.State = StateStopped.String()
	a.stats.Colormap = s.Colormap

	if s.ProfilePath != "" {
		a.profiler = newProfiler(s.ProfilePath, a.log)
	}

	if err := a.channel.Start(); err != nil {
		return nil, fmt.Errorf("start acquisition: %w", err)
	}
	return a, nil
}

// Run ticks the pipeline until ctx ends, the user quits or a sink closes.
// With TargetFPS 0 every tick follows the previous one as soon as the
// goroutine is idle; otherwise ticks are paced by a ticker. No tick waits for
// data.
func (a *App) Run(ctx context.Context) error {
	if !a.state.CompareAndSwap(int32(StateStopped), int32(StateRunning)) {
		return ErrRunning
	}
	a.setState(StateRunning)
	defer a.setState(StateStopped)

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	if a.cfg.Interactive {
		a.startInputListener(inputCtx)
	}

	var ticks <-chan time.Time
	if a.settings.TargetFPS > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / a.settings.TargetFPS))
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		if ticks == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case evt, ok := <-a.inputEvents:
				if a.handleInput(evt, ok) {
					return nil
				}
				continue
			default:
			}
			if done, err := a.runTick(); done {
				return err
			}
			runtime.Gosched()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if a.handleInput(evt, ok) {
				return nil
			}
		case <-ticks:
			if done, err := a.runTick(); done {
				return err
			}
		}
	}
}

// Close stops the acquisition channel, waits for it until ctx ends and
// releases the sinks. A channel that outlives ctx yields
// acquisition.ErrStopTimeout.
func (a *App) Close(ctx context.Context) error {
	a.channel.Stop()
	waitErr := a.channel.Wait(ctx)
	if waitErr != nil {
		waitErr = fmt.Errorf("stop acquisition: %w", waitErr)
	}
	return errors.Join(waitErr, a.sink.Close(), a.profiler.Close())
}

// State returns the scheduler state.
func (a *App) State() State {
	return State(a.state.Load())
}

// Settings returns the validated configuration.
func (a *App) Settings() config.Config {
	return a.settings
}

func (a *App) runTick() (bool, error) {
	err := a.tick()
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, render.ErrQuit):
		a.log.Println("display closed, stopping")
		return true, nil
	default:
		return true, fmt.Errorf("display: %w", err)
	}
}

// tick runs one drain, absorb, normalize, display cycle.
func (a *App) tick() error {
	start := time.Now()
	a.profiler.beginTick(start)

	packets, overflow := a.drain.Drain(a.queue)
	a.profiler.mark(sectionDrain)
	if overflow != nil {
		a.onOverflow(overflow)
	}

	rows := a.buffer.Absorb(packets)
	a.profiler.mark(sectionAbsorb)

	frame := a.normalizer.Normalize(a.buffer)
	a.profiler.mark(sectionNormalize)

	err := a.sink.Display(frame, a.statusLine())
	a.profiler.mark(sectionDisplay)
	a.profiler.endTick()

	a.record(len(packets), rows, frame, time.Since(start))
	return err
}

func (a *App) onOverflow(evt *spectrogram.OverflowEvent) {
	a.log.Printf("plotting is slower than acquisition: kept %d packets, discarded %d", evt.Drained, evt.Discarded)
	a.metrics.overflows.Inc()
	a.metrics.discarded.Add(float64(evt.Discarded))

	a.statsMu.Lock()
	a.stats.OverflowEvents++
	a.stats.PacketsDiscarded += uint64(evt.Discarded)
	a.stats.LastOverflow = time.Now()
	a.statsMu.Unlock()
}

func (a *App) handleInput(evt inputEvent, ok bool) bool {
	if !ok {
		a.inputEvents = nil
		return false
	}
	switch evt {
	case inputEventQuit:
		return true
	case inputEventColormap:
		a.cycleColormap()
	case inputEventReset:
		a.buffer.Reset()
		a.log.Println("spectrogram buffer cleared")
	}
	return false
}

func (a *App) cycleColormap() {
	sinks := []render.Sink{a.sink}
	if tee, ok := a.sink.(render.Tee); ok {
		sinks = tee
	}
	for _, s := range sinks {
		cm, ok := s.(render.Colormapped)
		if !ok {
			continue
		}
		next := a.colormaps[0]
		for i, name := range a.colormaps {
			if name == cm.ColormapName() {
				next = a.colormaps[(i+1)%len(a.colormaps)]
				break
			}
		}
		cm.SetColormap(next)
		a.statsMu.Lock()
		a.stats.Colormap = next
		a.statsMu.Unlock()
	}
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Printf("keyboard input disabled: %v", err)
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			switch {
			case key == keyboard.KeyEsc || key == keyboard.KeyCtrlC || char == 'q' || char == 'Q':
				events <- inputEventQuit
				return
			case char == 'c' || char == 'C':
				select {
				case events <- inputEventColormap:
				default:
				}
			case char == 'r' || char == 'R':
				select {
				case events <- inputEventReset:
				default:
				}
			}
		}
	}()
}

type discardSink struct{}

func (discardSink) Display(*spectrogram.Frame, string) error { return nil }
func (discardSink) Close() error                               { return nil }
