package render

import (
	"errors"

	"github.com/guidoenr/rfscope/internal/spectrogram"
)

// ErrQuit is returned by a sink whose window was closed by the user.
var ErrQuit = errors.New("display closed")

// Sink consumes normalized frames. Frames arrive with values in [0, 1] and
// must be mapped through a fixed lookup table without rescaling. A frame is
// only valid for the duration of the Display call.
type Sink interface {
	Display(frame *spectrogram.Frame, status string) error
	Close() error
}

// Colormapped is implemented by sinks whose lookup table can be switched.
type Colormapped interface {
	SetColormap(name string)
	ColormapName() string
}

// Tee fans every frame out to several sinks in order. The first error stops
// the fan-out for that frame.
type Tee []Sink

// Display forwards the frame to every sink.
func (t Tee) Display(frame *spectrogram.Frame, status string) error {
	for _, s := range t {
		if err := s.Display(frame, status); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and returns the first error.
func (t Tee) Close() error {
	var first error
	for _, s := range t {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
