// Package session holds the authenticated identity of the client and drives
// its lifecycle: login, logout, startup restore and forced expiry.
//
// A Store is created once per client and passed to whatever needs it. It is
// the only writer of the persisted credential; the request gateway reads it
// and deletes it on a 401, then calls Expire.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/ticketdesk/internal/client/alert"
	"github.com/dmitrijs2005/ticketdesk/internal/client/client"
	"github.com/dmitrijs2005/ticketdesk/internal/client/credential"
	"github.com/dmitrijs2005/ticketdesk/internal/client/models"
	"github.com/dmitrijs2005/ticketdesk/internal/clock"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
)

var (
	// ErrSuperseded is returned by Login when a logout or another session
	// change happened while the login was in flight. Its result is discarded.
	ErrSuperseded = errors.New("login superseded")
	// ErrInvalidInput is returned by Login for a malformed email or an empty
	// password. No request is sent.
	ErrInvalidInput = errors.New("invalid login input")
)

const (
	MsgWelcome            = "Welcome, %s!"
	MsgInvalidCredentials = "Invalid email or password."
	MsgInvalidInput       = "Enter a valid email and a password."
	MsgLoginFailed        = "Login failed. Please try again."
	MsgGoodbye            = "You have been logged out."
)

// Gateway is the part of the API client the session needs.
type Gateway interface {
	Login(ctx context.Context, email, password string) (string, error)
	CurrentUser(ctx context.Context) (*models.Identity, error)
	OnUnauthorized(fn func())
}

// Channel is the notification connection owned by the session.
type Channel interface {
	Connect(identityID int64)
	Disconnect()
}

type Navigator interface {
	RedirectToLogin()
}

type Deps struct {
	Gateway     Gateway
	Channel     Channel
	Credentials credential.Store
	Alerts      alert.Notifier
	Navigator   Navigator
	// Optional.
	Clock  clock.Clock
	Logger logging.Logger
}

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Store is the single source of who is logged in.
type Store struct {
	gw      Gateway
	channel Channel
	creds   credential.Store
	alerts  alert.Notifier
	nav     Navigator
	clock   clock.Clock
	logger  logging.Logger

	validate *validator.Validate

	// mu guards the fields below. Channel calls are made while holding it so
	// that connect and disconnect follow the order of state changes.
	mu       sync.Mutex
	state    State
	identity *models.Identity
	loading  bool
	// gen is bumped on every committed transition. Work started under an
	// older generation must not commit.
	gen uint64
}

// New builds a Store and subscribes it to the gateway's 401 handling.
func New(deps Deps) (*Store, error) {
	if deps.Gateway == nil || deps.Channel == nil || deps.Credentials == nil ||
		deps.Alerts == nil || deps.Navigator == nil {
		return nil, errors.New("session: Gateway, Channel, Credentials, Alerts and Navigator are required")
	}

	s := &Store{
		gw:       deps.Gateway,
		channel:  deps.Channel,
		creds:    deps.Credentials,
		alerts:   deps.Alerts,
		nav:      deps.Navigator,
		clock:    deps.Clock,
		logger:   deps.Logger,
		validate: validator.New(),
		state:    StateUninitialized,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	s.logger = s.logger.With("component", "session")

	deps.Gateway.OnUnauthorized(s.Expire)
	return s, nil
}

// Login exchanges credentials for a token, stores it, loads the identity and
// opens the notification channel. Every failure raises an alert and is
// returned to the caller.
func (s *Store) Login(ctx context.Context, email, password string) error {
	if err := s.validate.Struct(loginInput{Email: email, Password: password}); err != nil {
		s.alerts.Notify(alert.Warning(MsgInvalidInput))
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	s.mu.Lock()
	gen := s.gen
	s.loading = true
	s.mu.Unlock()
	defer s.setLoading(false)

	// Failures here are reported by the session itself, so the gateway must
	// not treat them as an expired session.
	qctx := client.Quiet(ctx)

	token, err := s.gw.Login(qctx, email, password)
	if err != nil {
		return s.loginFailed(ctx, gen, err)
	}
	if s.stale(gen) {
		return ErrSuperseded
	}

	if err := s.creds.Save(ctx, token, email); err != nil {
		return s.loginFailed(ctx, gen, fmt.Errorf("save credential: %w", err))
	}

	id, err := s.gw.CurrentUser(qctx)
	if err != nil {
		s.discardToken(ctx, token)
		return s.loginFailed(ctx, gen, err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.discardToken(ctx, token)
		s.logger.Info(ctx, "login superseded, discarding result", "identity_id", id.ID)
		return ErrSuperseded
	}
	s.gen++
	s.identity = id
	s.state = StateAuthenticated
	s.channel.Connect(id.ID)
	s.mu.Unlock()

	s.logger.Info(ctx, "logged in", "identity_id", id.ID, "role", string(id.Role))
	s.alerts.Notify(alert.Success(fmt.Sprintf(MsgWelcome, id.DisplayName())))
	return nil
}

func (s *Store) loginFailed(ctx context.Context, gen uint64, err error) error {
	if s.stale(gen) {
		s.logger.Debug(ctx, "superseded login failed", "error", err)
		return ErrSuperseded
	}

	s.logger.Warn(ctx, "login failed", "error", err)
	if errors.Is(err, client.ErrUnauthorized) {
		s.alerts.Notify(alert.Error(MsgInvalidCredentials))
	} else {
		s.alerts.Notify(alert.Error(MsgLoginFailed))
	}
	return err
}

// discardToken deletes token if it is still the stored credential.
func (s *Store) discardToken(ctx context.Context, token string) {
	current, err := s.creds.Token(ctx)
	if err != nil {
		s.logger.Error(ctx, "read credential", "error", err)
		return
	}
	if current != token {
		return
	}
	if err := s.creds.Delete(ctx); err != nil {
		s.logger.Error(ctx, "delete credential", "error", err)
	}
}

// Logout ends the active session. Without one it does nothing, so calling
// it twice raises a single goodbye.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.gen++
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return nil
	}

	delErr := s.creds.Delete(ctx)
	s.channel.Disconnect()
	s.identity = nil
	s.state = StateUnauthenticated
	s.mu.Unlock()

	s.logger.Info(ctx, "logged out")
	s.alerts.Notify(alert.Info(MsgGoodbye))
	s.nav.RedirectToLogin()

	if delErr != nil {
		return fmt.Errorf("delete credential: %w", delErr)
	}
	return nil
}

// Expire is called when the backend rejected the credential. The gateway has
// already deleted it and raised the alert.
func (s *Store) Expire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.channel.Disconnect()
	s.identity = nil
	s.state = StateUnauthenticated
	s.logger.Info(context.Background(), "session expired")
}

// InitializeAuth restores the session from the stored credential. A missing,
// expired or rejected credential leaves the session unauthenticated without
// any alert. Only local storage errors are returned.
func (s *Store) InitializeAuth(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateInitializing
	s.loading = true
	gen := s.gen
	s.mu.Unlock()
	defer s.setLoading(false)

	token, err := s.creds.Token(ctx)
	if err != nil {
		s.settle(gen)
		return fmt.Errorf("read credential: %w", err)
	}
	if token == "" {
		s.settle(gen)
		return nil
	}

	if claims, err := credential.ParseClaims(token); err == nil && claims.Expired(s.clock.Now()) {
		s.logger.Info(ctx, "stored credential expired", "expires_at", claims.ExpiresAt)
		return s.dropStored(ctx, gen, token)
	}

	id, err := s.gw.CurrentUser(client.Quiet(ctx))
	if err != nil {
		s.logger.Info(ctx, "stored credential rejected", "error", err)
		return s.dropStored(ctx, gen, token)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	s.gen++
	s.identity = id
	s.state = StateAuthenticated
	s.channel.Connect(id.ID)
	s.logger.Info(ctx, "session restored", "identity_id", id.ID)
	return nil
}

func (s *Store) dropStored(ctx context.Context, gen uint64, token string) error {
	var err error
	if current, rerr := s.creds.Token(ctx); rerr != nil {
		err = fmt.Errorf("read credential: %w", rerr)
	} else if current == token {
		if derr := s.creds.Delete(ctx); derr != nil {
			err = fmt.Errorf("delete credential: %w", derr)
		}
	}
	s.settle(gen)
	return err
}

// settle marks the session unauthenticated unless another transition won.
func (s *Store) settle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.identity = nil
		s.state = StateUnauthenticated
	}
}

func (s *Store) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}
