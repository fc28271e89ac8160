//go:build sdl

package render

import (
	"os"
	"testing"
)

func TestSDLSinkDisplaysFrame(t *testing.T) {
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		t.Skip("no display available")
	}
	if !SupportsSDL() {
		t.Fatalf("sdl build must report SDL support")
	}
	s, err := NewSDL("rfscope test", 64, 32, "magma")
	if err != nil {
		t.Skipf("sdl unavailable: %v", err)
	}
	defer s.Close()
	frame := testFrame(8, 4)
	frame.Data.Set(7, 3, 1)
	if err := s.Display(frame, "test"); err != nil {
		t.Fatalf("display: %v", err)
	}
}
