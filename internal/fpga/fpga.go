// Package fpga drives the LimeUtil maintenance commands that load the
// streaming gateware onto a LimeSDR-Mini or put the factory image back.
package fpga

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
)

// DefaultBitstream is the gateware image shipped next to the binary.
const DefaultBitstream = "./LimeSDR-Mini_GW/LimeSDR-Mini_bitstreams/LimeSDR-Mini_lms7_trx_HW_1.2_auto.rpd"

// ErrNoBitstream is returned by Init when no image path is configured.
var ErrNoBitstream = errors.New("no fpga bitstream configured")

// Runner executes LimeUtil. Command defaults to "LimeUtil" on PATH.
type Runner struct {
	Command   string
	Bitstream string
	Log       *log.Logger
	// Output receives the tool's combined output; nil discards it.
	Output io.Writer
}

// Init programs the FPGA with Bitstream. The device has to be replugged
// afterwards.
func (r Runner) Init(ctx context.Context) error {
	if r.Bitstream == "" {
		return ErrNoBitstream
	}
	r.logf("Programming FPGA, takes ~20 sec...")
	if err := r.run(ctx, "--fpga="+r.Bitstream); err != nil {
		return fmt.Errorf("program fpga: %w", err)
	}
	r.logf("Please unplug and replug the LimeSDR-Mini...")
	return nil
}

// Restore writes the default LimeSuite image back to the device.
func (r Runner) Restore(ctx context.Context) error {
	r.logf("Restoring default LimeSuite FPGA image, takes ~20 sec...")
	if err := r.run(ctx, "--update"); err != nil {
		return fmt.Errorf("restore fpga: %w", err)
	}
	return nil
}

func (r Runner) run(ctx context.Context, args ...string) error {
	name := r.Command
	if name == "" {
		name = "LimeUtil"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.Output
	cmd.Stderr = io.MultiWriter(&stderr, writerOrDiscard(r.Output))
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return nil
}

func (r Runner) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf(format, args...)
	}
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
