//go:build sdl

package render

import (
	"fmt"
	"runtime"

	"github.com/guidoenr/rfscope/internal/spectrogram"
	"github.com/veandco/go-sdl2/sdl"
)

// SDL video calls must come from the main OS thread.
func init() {
	runtime.LockOSThread()
}

// sdlSink streams frames into a window texture with one texel per buffer
// entry; the GPU scales it to the window.
type sdlSink struct {
	window      *sdl.Window
	renderer    *sdl.Renderer
	texture     *sdl.Texture
	colormap    *Colormap
	pixelBuffer []byte
	texW        int
	texH        int
	pitch       int
	windowTitle string
}

// NewSDL opens a window of the given size.
func NewSDL(title string, width, height int, colormap string) (Sink, error) {
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return nil, fmt.Errorf("sdl init: %w", err)
	}
	window, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(width), int32(height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE,
	)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, fmt.Errorf("sdl window: %w", err)
	}
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		return nil, fmt.Errorf("sdl renderer: %w", err)
	}
	return &sdlSink{
		window:      window,
		renderer:    renderer,
		colormap:    LookupColormap(colormap),
		windowTitle: title,
	}, nil
}

func (s *sdlSink) ensureTexture(w, h int) error {
	if s.texture != nil && s.texW == w && s.texH == h {
		return nil
	}
	if s.texture != nil {
		s.texture.Destroy()
		s.texture = nil
	}
	tex, err := s.renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(w), int32(h),
	)
	if err != nil {
		return fmt.Errorf("sdl texture: %w", err)
	}
	s.texture = tex
	s.texW, s.texH = w, h
	s.pitch = w * 4
	s.pixelBuffer = make([]byte, s.pitch*h)
	return nil
}

// Display maps the frame through the colormap: buffer rows become texture
// columns, high bins the top texture rows.
func (s *sdlSink) Display(frame *spectrogram.Frame, status string) error {
	rows, bins := frame.Rows(), frame.Bins()
	if err := s.ensureTexture(rows, bins); err != nil {
		return err
	}

	for i := 0; i < rows; i++ {
		for j, v := range frame.Row(i) {
			r, g, b := s.colormap.RGB(v)
			offset := (bins-1-j)*s.pitch + i*4
			s.pixelBuffer[offset+0] = r
			s.pixelBuffer[offset+1] = g
			s.pixelBuffer[offset+2] = b
			s.pixelBuffer[offset+3] = 255
		}
	}

	if status != "" && status != s.windowTitle {
		s.window.SetTitle(status)
		s.windowTitle = status
	}
	if err := s.texture.Update(nil, s.pixelBuffer, s.pitch); err != nil {
		return err
	}
	if err := s.renderer.Clear(); err != nil {
		return err
	}
	if err := s.renderer.Copy(s.texture, nil, nil); err != nil {
		return err
	}
	s.renderer.Present()

	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch event.(type) {
		case *sdl.QuitEvent:
			return ErrQuit
		}
	}
	return nil
}

// SetColormap switches the lookup table.
func (s *sdlSink) SetColormap(name string) { s.colormap = LookupColormap(name) }

// ColormapName returns the active lookup table.
func (s *sdlSink) ColormapName() string { return s.colormap.Name() }

func (s *sdlSink) Close() error {
	if s.texture != nil {
		s.texture.Destroy()
		s.texture = nil
	}
	if s.renderer != nil {
		s.renderer.Destroy()
		s.renderer = nil
	}
	if s.window != nil {
		s.window.Destroy()
		s.window = nil
	}
	s.pixelBuffer = nil
	sdl.QuitSubSystem(sdl.INIT_VIDEO)
	return nil
}

// SupportsSDL reports whether the binary was built with the SDL backend.
func SupportsSDL() bool { return true }
