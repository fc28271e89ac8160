package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Source names.
const (
	SourceSynthetic = "synthetic"
	SourceAudio     = "audio"
)

// Backend names.
const (
	BackendTerminal = "terminal"
	BackendSDL      = "sdl"
	BackendNone     = "none"
)

// Config holds the spectrogram geometry, the hardware constants used for axis
// labels and the runtime options.
type Config struct {
	// ScreenFFTs is the retained time depth T.
	ScreenFFTs int `yaml:"screen_ffts"`
	// ScreenPackets is the number of packets spanning one screen; it is also
	// the per-tick drain bound.
	ScreenPackets int `yaml:"screen_packets"`
	// Bins is the number of frequency bins F.
	Bins int `yaml:"bins"`

	SampleClockHz float64 `yaml:"sample_clock_hz"`
	SamplesPerRow int     `yaml:"samples_per_row"`
	FreqStartHz   float64 `yaml:"freq_start_hz"`
	FreqStopHz    float64 `yaml:"freq_stop_hz"`
	FreqTicks     int     `yaml:"freq_ticks"`

	// TargetFPS paces render ticks; 0 runs the next tick as soon as possible.
	TargetFPS       float64       `yaml:"target_fps"`
	Source          string        `yaml:"source"`
	AudioDevice     string        `yaml:"audio_device"`
	Backend         string        `yaml:"backend"`
	Colormap        string        `yaml:"colormap"`
	UseANSI         bool          `yaml:"use_ansi"`
	ShowStatusBar   bool          `yaml:"show_status_bar"`
	WebPort         int           `yaml:"web_port"`
	PreviewFPS      float64       `yaml:"preview_fps"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	ProfilePath     string        `yaml:"profile_path"`
}

// Defaults mirrors the reference LimeSDR-Mini 2.4 GHz setup.
func Defaults() Config {
	return Config{
		ScreenFFTs:      2000,
		ScreenPackets:   200,
		Bins:            512,
		SampleClockHz:   80e6,
		SamplesPerRow:   1024 * 8 * 8,
		FreqStartHz:     2.40e9,
		FreqStopHz:      2.48e9,
		FreqTicks:       9,
		TargetFPS:       0,
		Source:          SourceSynthetic,
		Backend:         BackendTerminal,
		Colormap:        "viridis",
		UseANSI:         true,
		ShowStatusBar:   true,
		PreviewFPS:      10,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Load reads a YAML file on top of Defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks geometry and option values.
func (c *Config) Validate() error {
	c.Source = strings.ToLower(c.Source)
	c.Backend = strings.ToLower(c.Backend)

	switch {
	case c.ScreenFFTs <= 0:
		return fmt.Errorf("%w: screen_ffts must be positive (got %d)", ErrInvalidConfig, c.ScreenFFTs)
	case c.ScreenPackets <= 0:
		return fmt.Errorf("%w: screen_packets must be positive (got %d)", ErrInvalidConfig, c.ScreenPackets)
	case c.ScreenFFTs%c.ScreenPackets != 0:
		return fmt.Errorf("%w: screen_ffts (%d) must be a multiple of screen_packets (%d)", ErrInvalidConfig, c.ScreenFFTs, c.ScreenPackets)
	case c.Bins <= 0:
		return fmt.Errorf("%w: bins must be positive (got %d)", ErrInvalidConfig, c.Bins)
	case c.SampleClockHz <= 0 || c.SamplesPerRow <= 0:
		return fmt.Errorf("%w: sample clock and samples per row must be positive", ErrInvalidConfig)
	case c.FreqStopHz <= c.FreqStartHz:
		return fmt.Errorf("%w: freq_stop_hz must exceed freq_start_hz", ErrInvalidConfig)
	case c.TargetFPS < 0:
		return fmt.Errorf("%w: target_fps must not be negative (got %.2f)", ErrInvalidConfig, c.TargetFPS)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalidConfig)
	}

	switch c.Source {
	case SourceSynthetic, SourceAudio:
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}
	switch c.Backend {
	case BackendTerminal, BackendSDL, BackendNone:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.FreqTicks < 2 {
		c.FreqTicks = 2
	}
	return nil
}

// PacketRows is the number of time slices per packet.
func (c Config) PacketRows() int {
	return c.ScreenFFTs / c.ScreenPackets
}

// TimePerRow is the acquisition time covered by one row.
func (c Config) TimePerRow() time.Duration {
	return time.Duration(math.Round(float64(c.SamplesPerRow) * float64(time.Second) / c.SampleClockHz))
}

// FreqPerBin is the bandwidth covered by one bin.
func (c Config) FreqPerBin() float64 {
	return (c.FreqStopHz - c.FreqStartHz) / float64(c.Bins)
}
