package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/guidoenr/rfscope/internal/acquisition"
	"github.com/guidoenr/rfscope/internal/app"
	"github.com/guidoenr/rfscope/internal/config"
	"github.com/guidoenr/rfscope/internal/fpga"
	"github.com/guidoenr/rfscope/internal/render"
	"github.com/guidoenr/rfscope/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/term"
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML configuration file")
		source      = flag.String("source", "", "Packet source (synthetic|audio)")
		deviceName  = flag.String("audio-device", "", "Optional PortAudio device name (substring match)")
		targetFPS   = flag.Float64("fps", 0, "Render ticks per second (0 = as fast as possible)")
		backend     = flag.String("backend", "", "Display backend (terminal|sdl|none)")
		colormap    = flag.String("colormap", "", "Colormap (viridis|magma|inferno|gray)")
		webPort     = flag.Int("web-port", 0, "Serve the web preview and /metrics on this port (0 = off)")
		profilePath = flag.String("profile", "", "Write per-tick timings as CSV to this file")
		speed       = flag.Float64("speed", 1, "Synthetic source speed multiplier")
		shutdown    = flag.Duration("shutdown-timeout", 0, "How long to wait for acquisition to stop")
		debug       = flag.Bool("debug", false, "Enable verbose logging")
		noColor     = flag.Bool("no-color", false, "Disable ANSI color output")
		showStatus  = flag.Bool("status", true, "Display status bar")
		listDevs    = flag.Bool("list-audio-devices", false, "List available audio input devices and exit")
		fpgaInit    = flag.Bool("fpga-init", false, "Program the LimeSDR-Mini FPGA and exit")
		fpgaRestore = flag.Bool("fpga-restore", false, "Restore the default LimeSuite FPGA image and exit")
		bitstream   = flag.String("bitstream", fpga.DefaultBitstream, "FPGA image used by -fpga-init")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[rfscope] ", log.LstdFlags|log.Lmicroseconds)
	if !*debug {
		logger.SetOutput(os.Stderr)
		logger.SetFlags(0)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *fpgaInit || *fpgaRestore {
		runner := fpga.Runner{Bitstream: *bitstream, Log: logger, Output: os.Stdout}
		var err error
		if *fpgaInit {
			err = runner.Init(ctx)
		} else {
			err = runner.Restore(ctx)
		}
		if err != nil {
			logger.Fatalf("fpga: %v", err)
		}
		return
	}

	if *listDevs {
		listAudioDevices(logger)
		return
	}

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = *source
		case "audio-device":
			cfg.AudioDevice = *deviceName
		case "fps":
			cfg.TargetFPS = *targetFPS
		case "backend":
			cfg.Backend = *backend
		case "colormap":
			cfg.Colormap = *colormap
		case "web-port":
			cfg.WebPort = *webPort
		case "profile":
			cfg.ProfilePath = *profilePath
		case "shutdown-timeout":
			cfg.ShutdownTimeout = *shutdown
		case "no-color":
			cfg.UseANSI = !*noColor
		case "status":
			cfg.ShowStatusBar = *showStatus
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	channel, cleanup, err := newChannel(cfg, *speed, logger)
	if err != nil {
		logger.Fatalf("acquisition: %v", err)
	}
	defer cleanup()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sinks, interactive, err := newSinks(cfg)
	if err != nil {
		logger.Fatalf("display: %v", err)
	}

	var server *web.Server
	if cfg.WebPort > 0 {
		server = web.NewServer(web.Options{Settings: cfg, Gatherer: reg, Log: logger})
		sinks = append(sinks, server)
	}

	a, err := app.New(app.Config{
		Settings:    cfg,
		Channel:     channel,
		Sink:        sinks,
		Registry:    reg,
		Interactive: interactive,
		Log:         logger,
	})
	if err != nil {
		_ = sinks.Close()
		logger.Fatalf("failed to create app: %v", err)
	}

	if server != nil {
		server.Attach(a)
		if err := server.Start(cfg.WebPort); err != nil {
			logger.Printf("web preview disabled: %v", err)
		}
	}

	runErr := a.Run(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stopCancel()
	if err := a.Close(stopCtx); err != nil {
		if errors.Is(err, acquisition.ErrStopTimeout) {
			logger.Fatalf("fatal: %v", err)
		}
		fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
	}

	if runErr != nil && ctx.Err() == nil {
		logger.Fatalf("runtime error: %v", runErr)
	}
	st := a.Stats()
	logger.Printf("stopped after %d ticks, %d packets, %d overflow events (%d packets discarded)",
		st.Ticks, st.PacketsAbsorbed, st.OverflowEvents, st.PacketsDiscarded)
}

func newChannel(cfg config.Config, speed float64, logger *log.Logger) (acquisition.Channel, func(), error) {
	switch cfg.Source {
	case config.SourceAudio:
		if err := acquisition.Initialize(); err != nil {
			return nil, nil, fmt.Errorf("initialize PortAudio: %w", err)
		}
		ch, err := acquisition.NewAudio(acquisition.AudioConfig{
			DeviceName: cfg.AudioDevice,
			Bins:       cfg.Bins,
			PacketRows: cfg.PacketRows(),
		})
		if err != nil {
			acquisition.Terminate()
			return nil, nil, err
		}
		logger.Printf("audio input: %s (%.0f Hz, %v per row)", ch.Device().Name, ch.SampleRate(), ch.RowInterval())
		return ch, acquisition.Terminate, nil
	default:
		ch := acquisition.NewSynthetic(acquisition.SyntheticConfig{
			Bins:        cfg.Bins,
			PacketRows:  cfg.PacketRows(),
			RowInterval: cfg.TimePerRow(),
			Speed:       speed,
		})
		return ch, func() {}, nil
	}
}

var errSDLUnavailable = errors.New("backend sdl is not compiled in; rebuild with -tags sdl")

func newSinks(cfg config.Config) (render.Tee, bool, error) {
	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))
	switch cfg.Backend {
	case config.BackendTerminal:
		t, err := render.NewTerminal(os.Stdout, render.TerminalOptions{
			Colormap:   cfg.Colormap,
			UseANSI:    cfg.UseANSI,
			ShowStatus: cfg.ShowStatusBar,
			Axis:       render.NewAxis(cfg),
		})
		if err != nil {
			return nil, false, err
		}
		return render.Tee{t}, stdinTTY && t.Interactive(), nil
	case config.BackendSDL:
		if !render.SupportsSDL() {
			return nil, false, errSDLUnavailable
		}
		s, err := render.NewSDL("rfscope", 1280, 720, cfg.Colormap)
		if err != nil {
			return nil, false, err
		}
		return render.Tee{s}, stdinTTY, nil
	default:
		return render.Tee{}, stdinTTY, nil
	}
}

func listAudioDevices(logger *log.Logger) {
	if err := acquisition.Initialize(); err != nil {
		logger.Fatalf("failed to initialize PortAudio: %v", err)
	}
	defer acquisition.Terminate()

	devices, err := acquisition.ListDevices()
	if err != nil {
		logger.Fatalf("list devices: %v", err)
	}
	fmt.Printf("\n=== Audio Input Devices ===\n\n")
	for _, dev := range devices {
		fmt.Printf("- %s\n", dev)
	}
	if dev, err := acquisition.AutoDetectDevice(); err == nil && dev != nil {
		fmt.Printf("\nAuto-detected input: %s (%.0f Hz, %d channels)\n", dev.Name, dev.DefaultSampleRate, dev.MaxInputChannels)
	}
}
