package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/dmitrijs2005/ticketdesk/internal/client/alert"
	"github.com/dmitrijs2005/ticketdesk/internal/client/metrics"
	"github.com/dmitrijs2005/ticketdesk/internal/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

type peer struct {
	conn *websocket.Conn
	path string
}

// socketServer accepts notification sockets and records what clients send.
type socketServer struct {
	*httptest.Server
	peers  chan *peer
	frames chan string
	closes chan websocket.StatusCode
	dials  atomic.Int32
	// reject is the number of upcoming dials answered with 503.
	reject atomic.Int32
}

func newSocketServer(t *testing.T) *socketServer {
	t.Helper()
	s := &socketServer{
		peers:  make(chan *peer, 16),
		frames: make(chan string, 64),
		closes: make(chan websocket.StatusCode, 16),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.dials.Add(1)
		if s.reject.Load() > 0 {
			s.reject.Add(-1)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		s.peers <- &peer{conn: conn, path: r.URL.Path}
		for {
			typ, data, err := conn.Read(context.Background())
			if err != nil {
				select {
				case s.closes <- websocket.CloseStatus(err):
				default:
				}
				return
			}
			if typ == websocket.MessageText {
				s.frames <- string(data)
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *socketServer) nextPeer(t *testing.T) *peer {
	t.Helper()
	select {
	case p := <-s.peers:
		return p
	case <-time.After(waitFor):
		require.FailNow(t, "no connection accepted")
		return nil
	}
}

func (s *socketServer) nextFrame(t *testing.T) string {
	t.Helper()
	select {
	case f := <-s.frames:
		return f
	case <-time.After(waitFor):
		require.FailNow(t, "no frame received")
		return ""
	}
}

func (s *socketServer) nextClose(t *testing.T) websocket.StatusCode {
	t.Helper()
	select {
	case code := <-s.closes:
		return code
	case <-time.After(waitFor):
		require.FailNow(t, "connection not closed")
		return 0
	}
}

type harness struct {
	ch      *Channel
	alerts  *alert.Recorder
	clock   *clock.FakeClock
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, baseURL string) *harness {
	t.Helper()
	h := &harness{
		alerts:  &alert.Recorder{},
		clock:   clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		metrics: metrics.New(nil),
	}
	ch, err := New(Config{BaseURL: baseURL}, Deps{
		Alerts:  h.alerts,
		Clock:   h.clock,
		Metrics: h.metrics,
	})
	require.NoError(t, err)
	h.ch = ch
	t.Cleanup(ch.Disconnect)
	return h
}

func send(t *testing.T, p *peer, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, p.conn.Write(ctx, websocket.MessageText, []byte(frame)))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"}, Deps{})
	require.Error(t, err)

	_, err = New(Config{BaseURL: "ftp://localhost"}, Deps{Alerts: &alert.Recorder{}})
	require.Error(t, err)

	ch, err := New(Config{BaseURL: "http://localhost"}, Deps{Alerts: &alert.Recorder{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultReconnectInterval, ch.cfg.ReconnectInterval)
	assert.Equal(t, DefaultMaxAttempts, ch.cfg.MaxAttempts)
	assert.Equal(t, DefaultHeartbeatInterval, ch.cfg.HeartbeatInterval)
	assert.Equal(t, DefaultAlertDuration, ch.cfg.AlertDuration)
}

func TestAddress(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/api/tickets/ws/42"},
		{"https://tickets.example.com/", "wss://tickets.example.com/api/tickets/ws/42"},
		{"https://example.com/desk?x=1", "wss://example.com/desk/api/tickets/ws/42"},
	}
	for _, tt := range tests {
		ch, err := New(Config{BaseURL: tt.base}, Deps{Alerts: &alert.Recorder{}})
		require.NoError(t, err)
		assert.Equal(t, tt.want, ch.Address(42))
	}
}

func TestChannel_TicketEventRaisesAlert(t *testing.T) {
	s := newSocketServer(t)
	h := newHarness(t, s.URL)

	h.ch.Connect(7)
	p := s.nextPeer(t)
	assert.Equal(t, "/api/tickets/ws/7", p.path)
	require.Eventually(t, h.ch.Connected, waitFor, 10*time.Millisecond)

	send(t, p, `{"type":"ticket_updated","action":"assigned","ticket":{"title":"Fix leak"}}`)

	require.Eventually(t, func() bool { return h.alerts.Len() == 1 }, waitFor, 10*time.Millisecond)
	a := h.alerts.Alerts()[0]
	assert.Contains(t, a.Message, "Fix leak")
	assert.Equal(t, alert.LevelInfo, a.Level)
	assert.Equal(t, alert.TopRight, a.Position)
	assert.Equal(t, 5*time.Second, a.Duration)
	assert.Equal(t, 0, h.ch.Attempts())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ChannelFramesTotal.WithLabelValues(metrics.FrameTicketUpdated)))
}

func TestChannel_MalformedFrameIsDropped(t *testing.T) {
	s := newSocketServer(t)
	h := newHarness(t, s.URL)

	h.ch.Connect(7)
	p := s.nextPeer(t)

	send(t, p, `not-json`)
	send(t, p, `{"type":"chat_message","text":"hi"}`)
	send(t, p, `pong`)
	send(t, p, `{"type":"ticket_updated","action":"created","ticket":{"id":1,"title":"Boiler"}}`)

	require.Eventually(t, func() bool { return h.alerts.Len() == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, `New ticket: "Boiler"`, h.alerts.Alerts()[0].Message)
	assert.True(t, h.ch.Connected())
	assert.Equal(t, 0, h.ch.Attempts())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ChannelFramesTotal.WithLabelValues(metrics.FrameMalformed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ChannelFramesTotal.WithLabelValues(metrics.FrameUnknown)))
}

func TestChannel_HeartbeatWhileOpen(t *testing.T) {
	s := newSocketServer(t)
	h := newHarness(t, s.URL)

	h.ch.Connect(7)
	p := s.nextPeer(t)
	require.Eventually(t, h.ch.Connected, waitFor, 10*time.Millisecond)

	h.clock.WaitForTimers(1)
	h.clock.Advance(29 * time.Second)
	select {
	case f := <-s.frames:
		t.Fatalf("unexpected early frame %q", f)
	default:
	}

	h.clock.Advance(time.Second)
	assert.Equal(t, "ping", s.nextFrame(t))
	send(t, p, "pong")

	h.clock.Advance(30 * time.Second)
	assert.Equal(t, "ping", s.nextFrame(t))
	assert.Equal(t, 0, h.alerts.Len())
}

func TestChannel_ReconnectsAfterServerClose(t *testing.T) {
	s := newSocketServer(t)
	h := newHarness(t, s.URL)

	h.ch.Connect(7)
	p := s.nextPeer(t)
	require.Eventually(t, h.ch.Connected, waitFor, 10*time.Millisecond)

	_ = p.conn.Close(websocket.StatusGoingAway, "restart")
	require.Eventually(t, func() bool { return h.ch.Attempts() == 1 }, waitFor, 10*time.Millisecond)
	assert.False(t, h.ch.Connected())

	h.clock.WaitForTimers(1)
	h.clock.Advance(4 * time.Second)
	assert.Equal(t, int32(1), s.dials.Load())

	h.clock.Advance(time.Second)
	p2 := s.nextPeer(t)
	assert.Equal(t, "/api/tickets/ws/7", p2.path)
	require.Eventually(t, func() bool { return h.ch.Connected() && h.ch.Attempts() == 0 }, waitFor, 10*time.Millisecond)
}

func TestChannel_GivesUpAtCeiling(t *testing.T) {
	s := newSocketServer(t)
	s.reject.Store(1000)
	h := newHarness(t, s.URL)

	h.ch.Connect(7)
	for i := 1; i <= DefaultMaxAttempts; i++ {
		h.clock.WaitForTimers(1)
		assert.Equal(t, i, h.ch.Attempts())
		assert.Equal(t, int32(i), s.dials.Load())
		h.clock.Advance(DefaultReconnectInterval)
	}

	// The 11th failed dial schedules nothing.
	require.Eventually(t, func() bool { return !h.ch.Running() }, waitFor, 10*time.Millisecond)
	assert.Equal(t, 0, h.clock.PendingCount())
	assert.Equal(t, int32(DefaultMaxAttempts+1), s.dials.Load())
	assert.Equal(t, DefaultMaxAttempts, h.ch.Attempts())
	assert.Equal(t, 0, h.alerts.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ChannelExhaustedTotal))
	assert.Equal(t, float64(DefaultMaxAttempts), testutil.ToFloat64(h.metrics.ChannelReconnectsTotal))

	// A fresh Connect starts over.
	s.reject.Store(0)
	h.ch.Connect(7)
	s.nextPeer(t)
	require.Eventually(t, h.ch.Connected, waitFor, 10*time.Millisecond)
	assert.Equal(t, 0, h.ch.Attempts())
}

func TestChannel_SuccessfulOpenResetsAttempts(t *testing.T) {
	s := newSocketServer(t)
	s.reject.Store(3)
	h := newHarness(t, s.URL)

	h.ch.Connect(7)
	for i := 1; i <= 3; i++ {
		h.clock.WaitForTimers(1)
		require.Equal(t, i, h.ch.Attempts())
		h.clock.Advance(DefaultReconnectInterval)
	}
	s.nextPeer(t)
	require.Eventually(t, func() bool { return h.ch.Connected() && h.ch.Attempts() == 0 }, waitFor, 10*time.Millisecond)
}

func TestChannel_ConnectSameIDIsNoop(t *testing.T) {
	s := newSocketServer(t)
	h := newHarness(t, s.URL)

	h.ch.Connect(7)
	s.nextPeer(t)
	require.Eventually(t, h.ch.Connected, waitFor, 10*time.Millisecond)

	h.ch.Connect(7)
	h.ch.Connect(7)
	assert.True(t, h.ch.Connected())
	assert.Equal(t, int32(1), s.dials.Load())
	select {
	case <-s.peers:
		t.Fatal("second connection opened")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestChannel_ConnectOtherIDReplacesConnection(t *testing.T) {
	s := newSocketServer(t)
	h := newHarness(t, s.URL)

	h.ch.Connect(1)
	s.nextPeer(t)
	require.Eventually(t, h.ch.Connected, waitFor, 10*time.Millisecond)

	h.ch.Connect(2)
	assert.Equal(t, websocket.StatusNormalClosure, s.nextClose(t))

	p := s.nextPeer(t)
	assert.Equal(t, "/api/tickets/ws/2", p.path)
	assert.Equal(t, int64(2), h.ch.IdentityID())
	require.Eventually(t, h.ch.Connected, waitFor, 10*time.Millisecond)
}

func TestChannel_DisconnectReleasesEverything(t *testing.T) {
	s := newSocketServer(t)
	h := newHarness(t, s.URL)

	h.ch.Disconnect()

	h.ch.Connect(7)
	s.nextPeer(t)
	require.Eventually(t, h.ch.Connected, waitFor, 10*time.Millisecond)
	h.clock.WaitForTimers(1)

	h.ch.Disconnect()
	assert.Equal(t, websocket.StatusNormalClosure, s.nextClose(t))
	assert.False(t, h.ch.Connected())
	assert.False(t, h.ch.Running())
	assert.Equal(t, 0, h.clock.PendingCount())
	assert.Equal(t, float64(0), testutil.ToFloat64(h.metrics.ChannelConnected))

	h.ch.Disconnect()
	assert.Equal(t, 0, h.alerts.Len())
}

func TestChannel_DisconnectDuringReconnectWait(t *testing.T) {
	s := newSocketServer(t)
	s.reject.Store(1000)
	h := newHarness(t, s.URL)

	h.ch.Connect(7)
	h.clock.WaitForTimers(1)

	h.ch.Disconnect()
	assert.False(t, h.ch.Running())
	assert.Equal(t, 0, h.clock.PendingCount())

	h.clock.Advance(time.Minute)
	assert.Equal(t, int32(1), s.dials.Load())
}
