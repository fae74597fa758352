// Package notify keeps a push-notification socket open for the logged-in
// identity and turns ticket events into alerts.
//
// A Channel runs one connection loop at a time. The loop dials, serves the
// connection until it drops, and redials after a fixed interval until the
// attempt ceiling is reached. Every successful open resets the counter.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/dmitrijs2005/ticketdesk/internal/client/alert"
	"github.com/dmitrijs2005/ticketdesk/internal/client/metrics"
	"github.com/dmitrijs2005/ticketdesk/internal/clock"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
)

const (
	wsPath = "/api/tickets/ws/"

	heartbeatPayload = "ping"
	heartbeatReply   = "pong"

	dialTimeout  = 10 * time.Second
	writeTimeout = 5 * time.Second
	readLimit    = 1 << 20
)

const (
	DefaultReconnectInterval = 5 * time.Second
	DefaultMaxAttempts       = 10
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultAlertDuration     = 5 * time.Second
)

type Config struct {
	// BaseURL is the API origin. http selects ws, https selects wss.
	BaseURL           string
	ReconnectInterval time.Duration
	MaxAttempts       int
	HeartbeatInterval time.Duration
	AlertDuration     time.Duration
}

type Deps struct {
	Alerts alert.Notifier
	// The rest is optional.
	Logger     logging.Logger
	Metrics    *metrics.Metrics
	Clock      clock.Clock
	HTTPClient *http.Client
}

// Channel is the notification connection of one client. Its methods are
// safe for concurrent use and never return errors: every failure is logged
// and retried or dropped.
type Channel struct {
	cfg     Config
	wsURL   *url.URL
	alerts  alert.Notifier
	logger  logging.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
	http    *http.Client

	// lifecycle serialises Connect and Disconnect.
	lifecycle sync.Mutex

	mu         sync.Mutex
	identityID int64
	attempts   int
	conn       *websocket.Conn
	cancel     context.CancelFunc
	done       chan struct{}
}

func New(cfg Config, deps Deps) (*Channel, error) {
	if deps.Alerts == nil {
		return nil, errors.New("notify: Alerts is required")
	}
	u, err := socketURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.AlertDuration <= 0 {
		cfg.AlertDuration = DefaultAlertDuration
	}

	c := &Channel{
		cfg:     cfg,
		wsURL:   u,
		alerts:  deps.Alerts,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		clock:   deps.Clock,
		http:    deps.HTTPClient,
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	return c, nil
}

func socketURL(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("notify: invalid base URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("notify: base URL %q must be http or https", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + wsPath
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// Address returns the socket URL for identityID.
func (c *Channel) Address(identityID int64) string {
	u := *c.wsURL
	u.Path += strconv.FormatInt(identityID, 10)
	return u.String()
}

// Connect starts the connection loop for identityID and resets the attempt
// counter. It is a no-op while a loop for the same id is running. A loop for
// another id is stopped first.
func (c *Channel) Connect(identityID int64) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.cancel != nil && c.identityID == identityID {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.identityID = identityID
	c.attempts = 0
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go c.run(ctx, identityID, done)
}

// Disconnect closes the live connection, if any, and stops the loop. Once it
// returns no heartbeat or reconnect timer is left. Safe to call repeatedly.
func (c *Channel) Disconnect() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stop()
}

func (c *Channel) stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Connected reports whether a socket is open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Running reports whether a connection loop is active, connected or waiting
// to reconnect.
func (c *Channel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Attempts returns the number of reconnects since the last successful open.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// IdentityID returns the id of the last Connect call.
func (c *Channel) IdentityID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identityID
}

func (c *Channel) run(ctx context.Context, identityID int64, done chan struct{}) {
	log := c.logger.With("component", "notify", "identity_id", identityID)
	defer close(done)
	defer c.release(done)

	addr := c.Address(identityID)
	for {
		err := c.session(ctx, addr, log)
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		if c.attempts >= c.cfg.MaxAttempts {
			n := c.attempts
			c.mu.Unlock()
			c.metrics.ChannelExhaustedTotal.Inc()
			log.Warn(ctx, "reconnect ceiling reached, giving up", "attempts", n)
			return
		}
		c.attempts++
		n := c.attempts
		c.mu.Unlock()

		c.metrics.ChannelReconnectsTotal.Inc()
		log.Info(ctx, "connection closed, scheduling reconnect",
			"attempt", n, "max_attempts", c.cfg.MaxAttempts, "delay", c.cfg.ReconnectInterval.String(), "error", err)

		t := c.clock.NewTimer(c.cfg.ReconnectInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// release clears the loop state if it still belongs to the loop that owns done.
func (c *Channel) release(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done {
		return
	}
	c.cancel()
	c.cancel = nil
	c.done = nil
}

// session dials addr and serves the connection until it ends.
func (c *Channel) session(ctx context.Context, addr string, log logging.Logger) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, addr, &websocket.DialOptions{HTTPClient: c.http})
	cancel()
	if err != nil {
		log.Debug(ctx, "dial failed", "error", err)
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	c.mu.Lock()
	c.conn = conn
	c.attempts = 0
	c.mu.Unlock()
	c.metrics.ChannelConnected.Set(1)
	log.Info(ctx, "notification channel connected")

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.metrics.ChannelConnected.Set(0)
	}()

	return c.serve(ctx, conn, log)
}

// serve runs the heartbeat and reads frames sequentially until the
// connection drops or ctx is cancelled. On cancellation the socket is closed
// with a normal closure. Both helper goroutines have exited when it returns.
func (c *Channel) serve(ctx context.Context, conn *websocket.Conn, log logging.Logger) error {
	connCtx, stop := context.WithCancel(context.WithoutCancel(ctx))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.heartbeat(connCtx, conn, log)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "client disconnect")
		case <-connCtx.Done():
		}
	}()

	err := c.read(connCtx, conn, log)
	stop()
	wg.Wait()
	return err
}

func (c *Channel) heartbeat(ctx context.Context, conn *websocket.Conn, log logging.Logger) {
	t := c.clock.NewTicker(c.cfg.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, []byte(heartbeatPayload))
			cancel()
			if err != nil {
				log.Debug(ctx, "heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (c *Channel) read(ctx context.Context, conn *websocket.Conn, log logging.Logger) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			log.Debug(ctx, "ignoring binary frame", "size", len(data))
			continue
		}
		c.handle(ctx, data, log)
	}
}

func (c *Channel) handle(ctx context.Context, data []byte, log logging.Logger) {
	if string(data) == heartbeatReply {
		c.metrics.ChannelFramesTotal.WithLabelValues(metrics.FrameHeartbeat).Inc()
		log.Debug(ctx, "heartbeat reply")
		return
	}

	env, err := Decode(data)
	if err != nil {
		c.metrics.ChannelFramesTotal.WithLabelValues(metrics.FrameMalformed).Inc()
		log.Warn(ctx, "dropping frame", "error", err)
		return
	}

	switch e := env.(type) {
	case *TicketUpdated:
		c.metrics.ChannelFramesTotal.WithLabelValues(metrics.FrameTicketUpdated).Inc()
		log.Debug(ctx, "ticket updated", "ticket_id", e.Ticket.ID, "action", e.Action)
		c.alerts.Notify(alert.Alert{
			Level:    alert.LevelInfo,
			Message:  e.Message(),
			Position: alert.TopRight,
			Duration: c.cfg.AlertDuration,
		})
	default:
		c.metrics.ChannelFramesTotal.WithLabelValues(metrics.FrameUnknown).Inc()
		log.Debug(ctx, "ignoring envelope", "type", env.Type())
	}
}
