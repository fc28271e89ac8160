package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if got := cfg.PacketRows(); got != 10 {
		t.Fatalf("packet rows=%d want=10", got)
	}
	if got := cfg.TimePerRow(); got != 819200*time.Nanosecond {
		t.Fatalf("time per row=%v want=819.2µs", got)
	}
	if got := cfg.FreqPerBin(); got != 156250 {
		t.Fatalf("freq per bin=%f want=156250", got)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"zero depth":       func(c *Config) { c.ScreenFFTs = 0 },
		"uneven packets":   func(c *Config) { c.ScreenPackets = 300 },
		"zero bins":        func(c *Config) { c.Bins = 0 },
		"negative fps":     func(c *Config) { c.TargetFPS = -1 },
		"inverted span":    func(c *Config) { c.FreqStopHz = c.FreqStartHz },
		"unknown source":   func(c *Config) { c.Source = "hackrf" },
		"unknown backend":  func(c *Config) { c.Backend = "opengl" },
		"no stop deadline": func(c *Config) { c.ShutdownTimeout = 0 },
	}
	for name, mutate := range cases {
		cfg := Defaults()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: err=%v want ErrInvalidConfig", name, err)
		}
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfscope.yaml")
	data := []byte("screen_ffts: 400\nscreen_packets: 40\nsource: AUDIO\nshutdown_timeout: 2s\nweb_port: 8090\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ScreenFFTs != 400 || cfg.ScreenPackets != 40 || cfg.PacketRows() != 10 {
		t.Fatalf("geometry not applied: %+v", cfg)
	}
	if cfg.Source != SourceAudio {
		t.Fatalf("source=%q want=%q", cfg.Source, SourceAudio)
	}
	if cfg.ShutdownTimeout != 2*time.Second {
		t.Fatalf("shutdown timeout=%v want=2s", cfg.ShutdownTimeout)
	}
	if cfg.Bins != 512 || cfg.Colormap != "viridis" {
		t.Fatalf("defaults lost: bins=%d colormap=%q", cfg.Bins, cfg.Colormap)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
