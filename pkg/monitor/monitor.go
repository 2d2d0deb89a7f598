// Package monitor provides a WebSocket endpoint that exposes a session
// engine's state to the host UI: it pushes gain/duck snapshots at a fixed
// interval and accepts partial configuration updates. Gains cross this
// boundary on the UI's 0-100 percent scale.
package monitor

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tutorwatch/tutorwatch/pkg/engine"
	"github.com/tutorwatch/tutorwatch/pkg/mixer"
	"github.com/tutorwatch/tutorwatch/pkg/speech"
)

// Config holds the configuration for the monitor server.
type Config struct {
	// Addr is the address to listen on (e.g., ":8080").
	Addr string

	// Path is the WebSocket endpoint path.
	Path string

	// PushInterval is how often state snapshots are pushed to clients.
	PushInterval time.Duration

	// ReadBufferSize is the WebSocket read buffer size.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	WriteBufferSize int
}

// DefaultConfig returns the default monitor configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Path:            "/v1/monitor",
		PushInterval:    100 * time.Millisecond,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// StateMessage is the snapshot pushed to clients.
type StateMessage struct {
	Type            string  `json:"type"`
	SessionID       string  `json:"session_id"`
	ChannelAPercent float64 `json:"channel_a_percent"`
	ChannelBPercent float64 `json:"channel_b_percent"`
	IsDucking       bool    `json:"is_ducking"`
	SpeechActive    bool    `json:"speech_active"`
	TimestampMs     int64   `json:"timestamp_ms"`
}

// UpdateMessage is a partial configuration update from a client. Absent
// fields are left unchanged; present fields go through the engine's usual
// clamping.
type UpdateMessage struct {
	ChannelAPercent     *float64 `json:"channel_a_percent,omitempty"`
	ChannelBPercent     *float64 `json:"channel_b_percent,omitempty"`
	AutoDuckEnabled     *bool    `json:"auto_duck_enabled,omitempty"`
	AutoDuckAmount      *float64 `json:"auto_duck_amount,omitempty"`
	AutoDuckThresholdDb *float64 `json:"auto_duck_threshold_db,omitempty"`
	AutoDuckAttackMs    *int     `json:"auto_duck_attack_ms,omitempty"`
	AutoDuckReleaseMs   *int     `json:"auto_duck_release_ms,omitempty"`
	MinDurationMs       *int     `json:"min_duration_ms,omitempty"`
	SilenceDelayMs      *int     `json:"silence_delay_ms,omitempty"`
}

// Server serves engine state over WebSocket.
type Server struct {
	config *Config
	engine *engine.Engine

	httpServer *http.Server
	mux        *http.ServeMux
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a monitor server for the given engine.
func NewServer(config *Config, eng *engine.Engine) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config: config,
		engine: eng,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins; customize for production
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
	s.mux.HandleFunc(config.Path, s.HandleMonitor)
	return s
}

// Start begins serving. It returns once the listener goroutine is launched.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.mux,
	}

	go func() {
		log.Printf("[Monitor] listening on %s%s", s.config.Addr, s.config.Path)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[Monitor] server error: %v", err)
		}
	}()

	return nil
}

// Stop shuts the server down and disconnects clients.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// HandleMonitor upgrades the connection and runs the push/receive loops.
// Exported so hosts can mount it on their own mux.
func (s *Server) HandleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Monitor] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[Monitor] client connected: %s", r.RemoteAddr)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	go s.readLoop(cancel, conn)
	s.pushLoop(ctx, conn)

	log.Printf("[Monitor] client disconnected: %s", r.RemoteAddr)
}

// readLoop consumes config updates until the client goes away.
func (s *Server) readLoop(cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg UpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[Monitor] bad update message: %v", err)
			continue
		}
		s.applyUpdate(msg)
	}
}

// applyUpdate converts an UpdateMessage into engine updates, translating
// percent-valued gains to linear gain at this boundary.
func (s *Server) applyUpdate(msg UpdateMessage) {
	var mu mixer.StateUpdate
	if msg.ChannelAPercent != nil {
		g := mixer.PercentToGain(*msg.ChannelAPercent)
		mu.ChannelAGain = &g
	}
	if msg.ChannelBPercent != nil {
		g := mixer.PercentToGain(*msg.ChannelBPercent)
		mu.ChannelBGain = &g
	}
	mu.AutoDuckEnabled = msg.AutoDuckEnabled
	mu.AutoDuckAmount = msg.AutoDuckAmount
	mu.AutoDuckThresholdDb = msg.AutoDuckThresholdDb
	mu.AutoDuckAttackMs = msg.AutoDuckAttackMs
	mu.AutoDuckReleaseMs = msg.AutoDuckReleaseMs
	s.engine.UpdateMixer(mu)

	if msg.MinDurationMs != nil || msg.SilenceDelayMs != nil {
		s.engine.UpdateDetector(speech.ConfigUpdate{
			MinDurationMs:  msg.MinDurationMs,
			SilenceDelayMs: msg.SilenceDelayMs,
		})
	}
}

// pushLoop streams state snapshots until the connection or server closes.
func (s *Server) pushLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.config.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.snapshot()); err != nil {
				return
			}
		}
	}
}

func (s *Server) snapshot() StateMessage {
	gainA, gainB := s.engine.Gains()
	return StateMessage{
		Type:            "state",
		SessionID:       s.engine.ID(),
		ChannelAPercent: mixer.GainToPercent(gainA),
		ChannelBPercent: mixer.GainToPercent(gainB),
		IsDucking:       s.engine.IsDucking(),
		SpeechActive:    s.engine.IsSpeechActive(),
		TimestampMs:     time.Now().UnixMilli(),
	}
}
