package monitor

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutorwatch/tutorwatch/pkg/engine"
)

func dialTestServer(t *testing.T, s *Server) (*websocket.Conn, func()) {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(s.HandleMonitor))
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		ts.Close()
	}
}

func TestMonitorPushesState(t *testing.T) {
	eng := engine.NewEngine(engine.DefaultConfig())
	defer eng.Destroy()

	cfg := DefaultConfig()
	cfg.PushInterval = 10 * time.Millisecond
	s := NewServer(cfg, eng)

	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg StateMessage
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, eng.ID(), msg.SessionID)
	assert.Equal(t, 100.0, msg.ChannelAPercent)
	assert.Equal(t, 100.0, msg.ChannelBPercent)
	assert.False(t, msg.IsDucking)
}

func TestMonitorAppliesUpdates(t *testing.T) {
	eng := engine.NewEngine(engine.DefaultConfig())
	defer eng.Destroy()

	cfg := DefaultConfig()
	cfg.PushInterval = 10 * time.Millisecond
	s := NewServer(cfg, eng)

	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	// Gains cross the boundary in percent.
	percent := 50.0
	enabled := false
	silence := 40 // below the floor, must be clamped by the detector
	require.NoError(t, conn.WriteJSON(UpdateMessage{
		ChannelBPercent: &percent,
		AutoDuckEnabled: &enabled,
		SilenceDelayMs:  &silence,
	}))

	require.Eventually(t, func() bool {
		st := eng.MixerState()
		return st.ChannelBGain == 0.5 && !st.AutoDuckEnabled
	}, time.Second, 5*time.Millisecond)
}

func TestMonitorBadMessageIgnored(t *testing.T) {
	eng := engine.NewEngine(engine.DefaultConfig())
	defer eng.Destroy()

	cfg := DefaultConfig()
	cfg.PushInterval = 10 * time.Millisecond
	s := NewServer(cfg, eng)

	conn, cleanup := dialTestServer(t, s)
	defer cleanup()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	// The connection stays up and keeps pushing state.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg StateMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "state", msg.Type)
}
