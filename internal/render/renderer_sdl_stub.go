//go:build !sdl

package render

import "errors"

// NewSDL reports that the window backend was not compiled in.
func NewSDL(title string, width, height int, colormap string) (Sink, error) {
	return nil, errors.New("SDL backend not enabled; rebuild with -tags sdl")
}

// SupportsSDL reports whether the binary was built with the SDL backend.
func SupportsSDL() bool { return false }
