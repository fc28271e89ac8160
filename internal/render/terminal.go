package render

import (
	"bytes"
	"io"
	"os"

	"github.com/guidoenr/rfscope/internal/spectrogram"
	"golang.org/x/term"
)

// TerminalOptions configures a Terminal sink. Width and Height are used only
// when the output is not a terminal.
type TerminalOptions struct {
	Width      int
	Height     int
	Colormap   string
	UseANSI    bool
	ShowStatus bool
	Axis       Axis
}

// Terminal is a Sink drawing frames on a character terminal, using the
// alternate screen when the output is a tty.
type Terminal struct {
	renderer   *Renderer
	out        io.Writer
	fd         int
	width      int
	height     int
	showStatus bool
	entered    bool
	buf        bytes.Buffer
}

// NewTerminal creates a terminal sink writing to out.
func NewTerminal(out io.Writer, opts TerminalOptions) (*Terminal, error) {
	t := &Terminal{
		out:        out,
		fd:         -1,
		width:      opts.Width,
		height:     opts.Height,
		showStatus: opts.ShowStatus,
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
		if w, h, err := term.GetSize(t.fd); err == nil && w > 0 && h > 0 {
			t.width, t.height = w, h
		}
	}
	if t.width <= 0 {
		t.width = 80
	}
	if t.height <= 0 {
		t.height = 24
	}

	renderer, err := New(t.width, t.plotHeight(), opts.Colormap, opts.UseANSI, opts.Axis)
	if err != nil {
		return nil, err
	}
	t.renderer = renderer
	return t, nil
}

// Display renders frame and writes it in a single write.
func (t *Terminal) Display(frame *spectrogram.Frame, status string) error {
	t.ensureDimensions()

	t.buf.Reset()
	if t.fd >= 0 && !t.entered {
		t.buf.WriteString("\x1b[?1049h\x1b[2J\x1b[?25l")
		t.entered = true
	}
	if t.fd >= 0 {
		t.buf.WriteString("\x1b[H")
	}

	view := t.renderer.Render(frame)
	for _, line := range view.Lines {
		t.buf.WriteString(line)
		t.buf.WriteByte('\n')
	}
	if t.showStatus {
		t.buf.WriteString(statusBar(status, t.width))
		t.buf.WriteByte('\n')
	}
	_, err := t.out.Write(t.buf.Bytes())
	return err
}

// Close restores the cursor and leaves the alternate screen.
func (t *Terminal) Close() error {
	if !t.entered {
		return nil
	}
	t.entered = false
	_, err := io.WriteString(t.out, "\x1b[?25h\x1b[?1049l\x1b[0m")
	return err
}

// SetColormap switches the lookup table.
func (t *Terminal) SetColormap(name string) { t.renderer.SetColormap(name) }

// ColormapName returns the active lookup table.
func (t *Terminal) ColormapName() string { return t.renderer.ColormapName() }

// Interactive reports whether the sink draws on a real terminal.
func (t *Terminal) Interactive() bool { return t.fd >= 0 }

func (t *Terminal) plotHeight() int {
	h := t.height
	if t.showStatus && h > 1 {
		h--
	}
	// the trailing newline of the last line would scroll a full screen
	if t.fd >= 0 && h > 1 {
		h--
	}
	return h
}

func (t *Terminal) ensureDimensions() {
	if t.fd < 0 {
		return
	}
	w, h, err := term.GetSize(t.fd)
	if err != nil || w <= 0 || h <= 0 || (w == t.width && h == t.height) {
		return
	}
	t.width, t.height = w, h
	t.renderer.Resize(w, t.plotHeight())
}
