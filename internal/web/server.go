// Package web serves a browser preview of the spectrogram: JSON status and
// configuration endpoints, Prometheus metrics, and a websocket that streams
// downsampled frames.
package web

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/rfscope/internal/app"
	"github.com/guidoenr/rfscope/internal/config"
	"github.com/guidoenr/rfscope/internal/spectrogram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusInterval = 500 * time.Millisecond
	pingInterval   = 54 * time.Second
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	sendBuffer     = 16
)

// StatusSource provides scheduler counters.
type StatusSource interface {
	Stats() app.Stats
}

// Options configures a Server.
type Options struct {
	Settings config.Config
	Gatherer prometheus.Gatherer
	Log      *log.Logger
	// PreviewRows and PreviewBins bound the size of streamed frames.
	PreviewRows int
	PreviewBins int
}

// Server is both an HTTP handler and a render sink. Frames passed to Display
// are reduced to at most PreviewRows x PreviewBins bytes and pushed to every
// websocket client, at most PreviewFPS times per second.
type Server struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	source   StatusSource
	upgrader websocket.Upgrader

	settings     config.Config
	gatherer     prometheus.Gatherer
	log          *log.Logger
	previewRows  int
	previewBins  int
	previewEvery time.Duration
	lastPreview  time.Time

	httpSrv   *http.Server
	addr      net.Addr
	quit      chan struct{}
	closeOnce sync.Once
}

type message struct {
	kind int
	data []byte
}

type client struct {
	conn   *websocket.Conn
	send   chan message
	server *Server
}

// StatusResponse is served by /api/status and pushed to websocket clients.
type StatusResponse struct {
	Type  string    `json:"type"`
	Time  time.Time `json:"time"`
	Stats app.Stats `json:"stats"`
}

// ConfigResponse is served by /api/config.
type ConfigResponse struct {
	ScreenFFTs    int     `json:"screen_ffts"`
	ScreenPackets int     `json:"screen_packets"`
	PacketRows    int     `json:"packet_rows"`
	Bins          int     `json:"bins"`
	TimePerRowNS  int64   `json:"time_per_row_ns"`
	FreqStartHz   float64 `json:"freq_start_hz"`
	FreqStopHz    float64 `json:"freq_stop_hz"`
	FreqPerBinHz  float64 `json:"freq_per_bin_hz"`
	TargetFPS     float64 `json:"target_fps"`
	Source        string  `json:"source"`
	PreviewRows   int     `json:"preview_rows"`
	PreviewBins   int     `json:"preview_bins"`
}

// NewServer creates a server. Attach a StatusSource before Start to serve
// live counters.
func NewServer(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = log.Default()
	}
	rows := opts.PreviewRows
	if rows <= 0 || rows > opts.Settings.ScreenFFTs {
		rows = min(250, opts.Settings.ScreenFFTs)
	}
	bins := opts.PreviewBins
	if bins <= 0 || bins > opts.Settings.Bins {
		bins = opts.Settings.Bins
	}
	var every time.Duration
	if opts.Settings.PreviewFPS > 0 {
		every = time.Duration(float64(time.Second) / opts.Settings.PreviewFPS)
	}
	return &Server{
		clients:      make(map[*client]bool),
		settings:     opts.Settings,
		gatherer:     opts.Gatherer,
		log:          opts.Log,
		previewRows:  rows,
		previewBins:  bins,
		previewEvery: every,
		quit:         make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Attach sets the source of /api/status.
func (s *Server) Attach(src StatusSource) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on port (0 picks a free one) and serves in the background.
func (s *Server) Start(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("web listen: %w", err)
	}
	s.addr = ln.Addr()
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Printf("[web] serving on http://%s", s.addr)

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Printf("[web] server error: %v", err)
		}
	}()
	go s.statusLoop()
	return nil
}

// Addr returns the listening address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Display implements render.Sink. It never blocks on slow clients.
func (s *Server) Display(frame *spectrogram.Frame, _ string) error {
	if s.ClientCount() == 0 {
		return nil
	}
	now := time.Now()
	if s.previewEvery > 0 && now.Sub(s.lastPreview) < s.previewEvery {
		return nil
	}
	s.lastPreview = now
	s.broadcast(message{kind: websocket.BinaryMessage, data: encodePreview(frame, s.previewRows, s.previewBins)})
	return nil
}

// Close disconnects every client and shuts the HTTP server down.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		s.mu.Lock()
		for c := range s.clients {
			close(c.send)
			delete(s.clients, c)
		}
		s.mu.Unlock()
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = s.httpSrv.Shutdown(ctx)
		}
	})
	return err
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// encodePreview packs a frame as a 4-byte header (rows, bins as big-endian
// uint16) followed by rows*bins intensity bytes, oldest row first. Each output
// cell holds the peak of the block it covers.
func encodePreview(frame *spectrogram.Frame, rows, bins int) []byte {
	srcRows, srcBins := frame.Rows(), frame.Bins()
	rows = min(rows, srcRows)
	bins = min(bins, srcBins)

	out := make([]byte, 4+rows*bins)
	binary.BigEndian.PutUint16(out[0:], uint16(rows))
	binary.BigEndian.PutUint16(out[2:], uint16(bins))
	cells := out[4:]

	for y := 0; y < rows; y++ {
		r0 := y * srcRows / rows
		r1 := max((y+1)*srcRows/rows, r0+1)
		for x := 0; x < bins; x++ {
			b0 := x * srcBins / bins
			b1 := max((x+1)*srcBins/bins, b0+1)
			peak := 0.0
			for i := r0; i < r1; i++ {
				for _, v := range frame.Row(i)[b0:b1] {
					peak = max(peak, v)
				}
			}
			cells[y*bins+x] = byte(min(peak, 1)*255 + 0.5)
		}
	}
	return out
}

func (s *Server) status() (StatusResponse, bool) {
	s.mu.RLock()
	src := s.source
	s.mu.RUnlock()
	if src == nil {
		return StatusResponse{}, false
	}
	return StatusResponse{Type: "status", Time: time.Now(), Stats: src.Stats()}, true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.status()
	if !ok {
		http.Error(w, "scheduler not attached", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, status)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	c := s.settings
	writeJSON(w, ConfigResponse{
		ScreenFFTs:    c.ScreenFFTs,
		ScreenPackets: c.ScreenPackets,
		PacketRows:    c.PacketRows(),
		Bins:          c.Bins,
		TimePerRowNS:  c.TimePerRow().Nanoseconds(),
		FreqStartHz:   c.FreqStartHz,
		FreqStopHz:    c.FreqStopHz,
		FreqPerBinHz:  c.FreqPerBin(),
		TargetFPS:     c.TargetFPS,
		Source:        c.Source,
		PreviewRows:   s.previewRows,
		PreviewBins:   s.previewBins,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Printf("[web] websocket upgrade error: %v", err)
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan message, sendBuffer),
		server: s,
	}

	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		conn.Close()
		return
	default:
	}
	s.clients[c] = true
	s.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

// broadcast queues msg for every client, dropping clients whose buffer is full.
func (s *Server) broadcast(msg message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			close(c.send)
			delete(s.clients, c)
		}
	}
}

func (s *Server) statusLoop() {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
		}
		if s.ClientCount() == 0 {
			continue
		}
		status, ok := s.status()
		if !ok {
			continue
		}
		data, err := json.Marshal(status)
		if err != nil {
			continue
		}
		s.broadcast(message{kind: websocket.TextMessage, data: data})
	}
}

func (c *client) readPump() {
	defer func() {
		c.server.mu.Lock()
		if c.server.clients[c] {
			close(c.send)
			delete(c.server.clients, c)
		}
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
