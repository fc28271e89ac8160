package acquisition

import (
	"fmt"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/guidoenr/rfscope/internal/analyzer"
	"github.com/guidoenr/rfscope/internal/spectrogram"
)

// Audio feeds the spectrogram from a PortAudio input stream. The driver
// callback mixes channels to mono, slices the stream into FFT blocks and
// pushes one packet every PacketRows rows.
type Audio struct {
	worker

	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	device     *portaudio.DeviceInfo
	analyzer   *analyzer.Analyzer
	packetRows int

	// touched only by the driver callback
	pending []float32
	rows    [][]float64
}

// AudioConfig controls how an Audio channel is opened.
type AudioConfig struct {
	DeviceName string
	Bins       int
	PacketRows int
	Channels   int
}

// NewAudio opens a PortAudio stream. Initialize must have been called.
func NewAudio(cfg AudioConfig) (*Audio, error) {
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.PacketRows <= 0 {
		cfg.PacketRows = 10
	}

	an := analyzer.New(analyzer.Config{Bins: cfg.Bins})
	if an.Bins() != cfg.Bins {
		return nil, fmt.Errorf("audio source needs a power-of-two bin count (got %d)", cfg.Bins)
	}

	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	channels := min(cfg.Channels, device.MaxInputChannels)

	a := &Audio{
		sampleRate: device.DefaultSampleRate,
		channels:   channels,
		device:     device,
		analyzer:   an,
		packetRows: cfg.PacketRows,
		pending:    make([]float32, 0, an.BlockSize()*2),
	}
	a.worker.init()

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		Output:          portaudio.StreamDeviceParameters{},
		SampleRate:      a.sampleRate,
		FramesPerBuffer: an.BlockSize(),
	}, a.process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	a.stream = stream
	return a, nil
}

// Start begins streaming. The stream is stopped and closed once Stop is called.
func (a *Audio) Start() error {
	if err := a.begin(); err != nil {
		return err
	}
	if err := a.stream.Start(); err != nil {
		_ = a.stream.Close()
		a.finish(fmt.Errorf("start stream: %w", err))
		return fmt.Errorf("start stream: %w", err)
	}
	go func() {
		<-a.stop
		a.finish(a.close())
	}()
	return nil
}

func (a *Audio) close() error {
	if err := a.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
		_ = a.stream.Close()
		return fmt.Errorf("stop stream: %w", err)
	}
	if err := a.stream.Close(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	return nil
}

// SampleRate returns the stream sample rate.
func (a *Audio) SampleRate() float64 {
	return a.sampleRate
}

// Device returns the PortAudio device associated with the stream.
func (a *Audio) Device() *portaudio.DeviceInfo {
	return a.device
}

// RowInterval is the time covered by one row at the stream sample rate.
func (a *Audio) RowInterval() time.Duration {
	return time.Duration(float64(a.analyzer.BlockSize()) / a.sampleRate * float64(time.Second))
}

func (a *Audio) process(in []float32) {
	if !a.alive.Load() {
		return
	}
	if a.channels > 1 {
		for i := 0; i+a.channels <= len(in); i += a.channels {
			sum := float32(0)
			for ch := 0; ch < a.channels; ch++ {
				sum += in[i+ch]
			}
			a.pending = append(a.pending, sum/float32(a.channels))
		}
	} else {
		a.pending = append(a.pending, in...)
	}
	a.consume()
}

func (a *Audio) consume() {
	block := a.analyzer.BlockSize()
	offset := 0
	for len(a.pending)-offset >= block {
		a.rows = append(a.rows, a.analyzer.Row(a.pending[offset:offset+block]))
		offset += block
		if len(a.rows) == a.packetRows {
			a.queue.Push(spectrogram.NewPacket(a.rows, a.analyzer.Bins()))
			a.rows = make([][]float64, 0, a.packetRows)
		}
	}
	n := copy(a.pending, a.pending[offset:])
	a.pending = a.pending[:n]
}

// receiverKeywords rank devices that usually carry a receiver's baseband:
// SDR sound cards, IQ inputs, line-in and loopback monitors.
var receiverKeywords = []string{"sdr", "iq", "line", "monitor", "loopback"}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	if name != "" {
		needle := strings.ToLower(name)
		for _, d := range devices {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), needle) {
				return d, nil
			}
		}
		return nil, fmt.Errorf("audio device %q not found", name)
	}

	defaultIndex := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultIndex = def.Index
	}
	if best := rankDevices(devices, defaultIndex); best != nil {
		return best, nil
	}
	return nil, fmt.Errorf("no suitable audio input device found")
}

// rankDevices picks the input device with the highest score; ties go to the
// lexically first name.
func rankDevices(devices []*portaudio.DeviceInfo, defaultIndex int) *portaudio.DeviceInfo {
	var (
		best      *portaudio.DeviceInfo
		bestScore = -1
	)
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		score := min(d.MaxInputChannels, 2)
		if d.Index == defaultIndex {
			score += 30
		}
		lower := strings.ToLower(d.Name)
		for _, kw := range receiverKeywords {
			if strings.Contains(lower, kw) {
				score += 40
				break
			}
		}
		if score > bestScore || (score == bestScore && strings.ToLower(d.Name) < strings.ToLower(best.Name)) {
			best, bestScore = d, score
		}
	}
	return best
}

// errorsIsInvalidStreamState reports whether err comes from stopping a stream
// that is not running.
func errorsIsInvalidStreamState(err error) bool {
	return err != nil && strings.Contains(err.Error(), "PaErrorCode -9986")
}

// AutoDetectDevice returns the input device NewAudio would pick without a name.
func AutoDetectDevice() (*portaudio.DeviceInfo, error) {
	return findDevice("")
}
