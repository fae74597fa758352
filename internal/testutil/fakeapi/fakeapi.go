// Package fakeapi is an in-process stand-in for the ticket service. It speaks
// the same wire contract as the real backend: form login returning a bearer
// JWT, the identity and ticket endpoints, and the notification socket that
// answers "ping" with "pong".
//
// Tests drive it directly: add users, inject failures, revoke tokens and
// push envelopes to connected sockets.
package fakeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/ticketdesk/internal/client/models"
)

const DefaultTokenTTL = 30 * time.Minute

type account struct {
	identity models.Identity
	hash     []byte
}

type Server struct {
	*httptest.Server

	secret []byte
	ttl    time.Duration

	mu        sync.Mutex
	accounts  map[string]*account // by email
	byID      map[int64]*account
	revoked   map[string]bool
	failures  map[string]int
	tickets   []models.Ticket
	dashboard models.Dashboard
	sockets   map[int64]*websocket.Conn
	socketsUp *sync.Cond

	pings atomic.Int64
}

type Option func(*Server)

// WithTokenTTL sets the lifetime of minted tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) { s.ttl = d }
}

// New starts a fake backend. Close it when done.
func New(opts ...Option) *Server {
	s := &Server{
		secret:   []byte("fakeapi-secret"),
		ttl:      DefaultTokenTTL,
		accounts: map[string]*account{},
		byID:     map[int64]*account{},
		revoked:  map[string]bool{},
		failures: map[string]int{},
		sockets:  map[int64]*websocket.Conn{},
	}
	s.socketsUp = sync.NewCond(&s.mu)
	for _, o := range opts {
		o(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	api := e.Group("/api", s.injectFailures)
	api.POST("/auth/login", s.login)

	api.GET("/auth/me", s.me, s.auth)
	api.GET("/tickets/", s.listTickets, s.auth)
	api.GET("/tickets/dashboard/data", s.getDashboard, s.auth)

	api.GET("/tickets/ws/:id", s.socket)

	s.Server = httptest.NewServer(e)
	return s
}

// errorHandler renders errors as {"detail": "..."} like the real service.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := http.StatusInternalServerError, "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code, msg = he.Code, fmt.Sprintf("%v", he.Message)
	}
	_ = c.JSON(code, map[string]string{"detail": msg})
}

// AddUser registers an account that can log in with password.
func (s *Server) AddUser(id models.Identity, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &account{identity: id, hash: hash}
	s.accounts[strings.ToLower(id.Email)] = a
	s.byID[id.ID] = a
}

func (s *Server) SetTickets(tickets []models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = tickets
}

func (s *Server) SetDashboard(d models.Dashboard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboard = d
}

// Fail makes every request to path answer status until Fail(path, 0).
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = status
}

// Revoke makes token answer 401 from now on.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// MintToken signs a token for userID expiring at exp.
func (s *Server) MintToken(userID int64, exp time.Time) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return tok
}

// Pings returns the number of heartbeat frames received.
func (s *Server) Pings() int64 { return s.pings.Load() }

// Connected reports whether userID has an open socket.
func (s *Server) Connected(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sockets[userID]
	return ok
}

// WaitForSocket blocks until userID has an open socket or ctx is done.
func (s *Server) WaitForSocket(ctx context.Context, userID int64) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.socketsUp.Broadcast()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.sockets[userID] == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.socketsUp.Wait()
	}
	return nil
}

// Push sends v as a JSON text frame to userID's socket.
func (s *Server) Push(ctx context.Context, userID int64, v any) error {
	s.mu.Lock()
	conn := s.sockets[userID]
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("fakeapi: no socket for user %d", userID)
	}
	return wsjson.Write(ctx, conn, v)
}

// PushText sends a raw text frame to userID's socket.
func (s *Server) PushText(ctx context.Context, userID int64, text string) error {
	s.mu.Lock()
	conn := s.sockets[userID]
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("fakeapi: no socket for user %d", userID)
	}
	return conn.Write(ctx, websocket.MessageText, []byte(text))
}

// DropSockets closes every open socket as a server restart would. It does
// not wait for the clients to answer the close handshake.
func (s *Server) DropSockets() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.sockets))
	for _, c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		go func(c *websocket.Conn) {
			_ = c.Close(websocket.StatusGoingAway, "server restart")
		}(c)
	}
}

func (s *Server) injectFailures(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		status, ok := s.failures[c.Request().URL.Path]
		s.mu.Unlock()
		if ok {
			return echo.NewHTTPError(status, http.StatusText(status))
		}
		return next(c)
	}
}

func (s *Server) auth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
		}

		var claims jwt.RegisteredClaims
		tkn, err := jwt.ParseWithClaims(parts[1], &claims, func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return s.secret, nil
		})
		if err != nil || !tkn.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
		}

		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
		}

		s.mu.Lock()
		revoked := s.revoked[parts[1]]
		a := s.byID[id]
		s.mu.Unlock()
		if revoked || a == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
		}
		if !a.identity.IsActive {
			return echo.NewHTTPError(http.StatusBadRequest, "Inactive user")
		}

		c.Set("identity", a.identity)
		return next(c)
	}
}

func (s *Server) login(c echo.Context) error {
	email := strings.ToLower(c.FormValue("username"))
	password := c.FormValue("password")

	s.mu.Lock()
	a := s.accounts[email]
	s.mu.Unlock()
	if a == nil || bcrypt.CompareHashAndPassword(a.hash, []byte(password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect email or password")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"access_token": s.MintToken(a.identity.ID, time.Now().Add(s.ttl)),
		"token_type":   "bearer",
	})
}

func (s *Server) me(c echo.Context) error {
	return c.JSON(http.StatusOK, c.Get("identity"))
}

func (s *Server) listTickets(c echo.Context) error {
	s.mu.Lock()
	tickets := append([]models.Ticket{}, s.tickets...)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, tickets)
}

func (s *Server) getDashboard(c echo.Context) error {
	s.mu.Lock()
	d := s.dashboard
	s.mu.Unlock()
	return c.JSON(http.StatusOK, d)
}

func (s *Server) socket(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid user id")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	s.sockets[id] = conn
	s.socketsUp.Broadcast()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.sockets[id] == conn {
			delete(s.sockets, id)
		}
		s.mu.Unlock()
	}()

	ctx := context.WithoutCancel(c.Request().Context())
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return nil
		}
		if typ == websocket.MessageText && string(data) == "ping" {
			s.pings.Add(1)
			if err := conn.Write(ctx, websocket.MessageText, []byte("pong")); err != nil {
				return nil
			}
		}
	}
}
