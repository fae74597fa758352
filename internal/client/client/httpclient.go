package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/ticketdesk/internal/client/alert"
	"github.com/dmitrijs2005/ticketdesk/internal/client/metrics"
	"github.com/dmitrijs2005/ticketdesk/internal/client/models"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	RequestIDHeaderName = "X-Request-ID"

	maxBodySize = 4 << 20
)

// User-facing texts raised by interception.
const (
	MsgSessionExpired   = "Your session has expired. Please log in again."
	MsgPermissionDenied = "You do not have permission to perform this action."
	MsgServerError      = "Server error. Please try again later."
	MsgNetworkError     = "Network error. Check your connection."
)

// Client is the API surface the CLI and the session layer use.
type Client interface {
	Login(ctx context.Context, email, password string) (string, error)
	CurrentUser(ctx context.Context) (*models.Identity, error)
	Tickets(ctx context.Context) ([]models.Ticket, error)
	Dashboard(ctx context.Context) (*models.Dashboard, error)
	OnUnauthorized(fn func())
}

// CredentialStore is the part of the persisted credential the gateway needs.
type CredentialStore interface {
	Token(ctx context.Context) (string, error)
	Delete(ctx context.Context) error
}

// Navigator sends the user to the login entry point.
type Navigator interface {
	RedirectToLogin()
}

type Config struct {
	// BaseURL is the API origin, e.g. "http://localhost:8000".
	BaseURL string
	// Timeout bounds every request. Zero means no timeout.
	Timeout time.Duration
}

type Deps struct {
	Credentials CredentialStore
	Alerts      alert.Notifier
	Navigator   Navigator
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
	Logger     logging.Logger
	Metrics    *metrics.Metrics
}

// HTTPClient is the REST implementation of Client.
type HTTPClient struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	creds    CredentialStore
	alerts   alert.Notifier
	nav      Navigator
	logger   logging.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate

	// mu serialises 401 handling so that concurrent rejections of the same
	// credential produce a single expiry.
	mu        sync.Mutex
	listeners []func()
}

var _ Client = (*HTTPClient)(nil)

func New(cfg Config, deps Deps) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: BaseURL %q must be http or https", cfg.BaseURL)
	}
	if deps.Credentials == nil || deps.Alerts == nil || deps.Navigator == nil {
		return nil, errors.New("client: Credentials, Alerts and Navigator are required")
	}

	c := &HTTPClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  cfg.Timeout,
		http:     deps.HTTPClient,
		creds:    deps.Credentials,
		alerts:   deps.Alerts,
		nav:      deps.Navigator,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		validate: validator.New(),
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.metrics == nil {
		c.metrics = metrics.New(nil)
	}
	return c, nil
}

// OnUnauthorized registers fn to be called once per expired credential.
func (c *HTTPClient) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

type tokenResponse struct {
	AccessToken string `json:"access_token" validate:"required"`
	TokenType   string `json:"token_type"`
}

// Login exchanges email and password for a bearer token. The backend uses
// the OAuth2 password form, with the email in the username field.
//
// The exchange is never intercepted: a 401 here means bad credentials, not an
// expired session.
func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	ctx = Quiet(ctx)

	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &resp)
	if err != nil {
		return "", err
	}
	if err := c.validate.Struct(resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return resp.AccessToken, nil
}

// CurrentUser fetches the identity the stored credential belongs to.
func (c *HTTPClient) CurrentUser(ctx context.Context) (*models.Identity, error) {
	var id models.Identity
	if err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &id); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &id, nil
}

func (c *HTTPClient) Tickets(ctx context.Context) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if err := c.Do(ctx, http.MethodGet, "/api/tickets/", nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *HTTPClient) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	var d models.Dashboard
	if err := c.Do(ctx, http.MethodGet, "/api/tickets/dashboard/data", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Do sends a JSON request and decodes a JSON response into out (if non-nil).
func (c *HTTPClient) Do(ctx context.Context, method, path string, body, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: marshal %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, reader, contentType, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	token, err := c.creds.Token(ctx)
	if err != nil {
		c.logger.Warn(ctx, "credential unavailable, sending request without it", "error", err)
		token = ""
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("client: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeaderName, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.RequestsTotal.WithLabelValues(metrics.OutcomeNetworkError).Inc()
		c.logger.Warn(ctx, "request failed", "method", method, "path", path, "error", err)
		if !isQuiet(ctx) && !errors.Is(err, context.Canceled) {
			c.alerts.Notify(alert.Error(MsgNetworkError))
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.logger.Warn(ctx, "read response", "method", method, "path", path, "error", err)
		if !isQuiet(ctx) && !errors.Is(err, context.Canceled) {
			c.alerts.Notify(alert.Error(MsgNetworkError))
		}
		return fmt.Errorf("%w: read %s %s: %v", ErrUnavailable, method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		se := &StatusError{StatusCode: resp.StatusCode, Detail: parseDetail(data)}
		c.metrics.RequestsTotal.WithLabelValues(outcome(resp.StatusCode)).Inc()
		c.logger.Debug(ctx, "request rejected", "method", method, "path", path, "status", resp.StatusCode)
		if !isQuiet(ctx) {
			c.intercept(ctx, se, token)
		}
		return se
	}
	c.metrics.RequestsTotal.WithLabelValues(metrics.OutcomeOK).Inc()

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

func (c *HTTPClient) intercept(ctx context.Context, se *StatusError, sentToken string) {
	switch {
	case se.StatusCode == http.StatusUnauthorized:
		c.expire(ctx, sentToken)
	case se.StatusCode == http.StatusForbidden:
		c.alerts.Notify(alert.Error(MsgPermissionDenied))
	case se.StatusCode >= http.StatusInternalServerError:
		c.alerts.Notify(alert.Error(MsgServerError))
	}
}

// expire ends the session the rejected credential belonged to. A 401 for a
// credential that has since been deleted or replaced is ignored.
func (c *HTTPClient) expire(ctx context.Context, sentToken string) {
	c.mu.Lock()
	current, err := c.creds.Token(ctx)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error(ctx, "read credential on 401", "error", err)
		return
	}
	if current == "" || current != sentToken {
		c.mu.Unlock()
		c.logger.Debug(ctx, "ignoring 401 for a stale credential")
		return
	}
	if err := c.creds.Delete(ctx); err != nil {
		c.logger.Error(ctx, "delete credential on 401", "error", err)
	}
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()

	c.logger.Info(ctx, "credential rejected, session expired")
	for _, fn := range listeners {
		fn()
	}
	c.nav.RedirectToLogin()
	c.alerts.Notify(alert.Warning(MsgSessionExpired))
}

func outcome(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return metrics.OutcomeUnauthorized
	case status == http.StatusForbidden:
		return metrics.OutcomeForbidden
	case status >= http.StatusInternalServerError:
		return metrics.OutcomeServerError
	default:
		return metrics.OutcomeOther
	}
}

type quietKey struct{}

// Quiet returns a context whose requests are not intercepted: failures are
// returned to the caller without alerts, navigation or credential changes.
func Quiet(ctx context.Context) context.Context {
	return context.WithValue(ctx, quietKey{}, true)
}

func isQuiet(ctx context.Context) bool {
	v, _ := ctx.Value(quietKey{}).(bool)
	return v
}
