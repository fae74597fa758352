// Package app wires the ticketdesk client together: configuration, local
// storage, the request gateway, the notification channel, the session store
// and the interactive CLI. It also serves Prometheus metrics when asked to.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/ticketdesk/internal/client/cli"
	"github.com/dmitrijs2005/ticketdesk/internal/client/client"
	"github.com/dmitrijs2005/ticketdesk/internal/client/config"
	"github.com/dmitrijs2005/ticketdesk/internal/client/credential"
	"github.com/dmitrijs2005/ticketdesk/internal/client/metrics"
	"github.com/dmitrijs2005/ticketdesk/internal/client/notify"
	"github.com/dmitrijs2005/ticketdesk/internal/client/session"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	credentials credential.Store
	gateway     *client.HTTPClient
	channel     *notify.Channel
	session     *session.Store
	cli         *cli.App

	mu         sync.Mutex
	metricsSrv *echo.Echo
	closeOnce  sync.Once
}

// Options tweak NewApp for embedding and tests. The zero value writes the
// REPL and toasts to stdout and logs to stderr.
type Options struct {
	Out       io.Writer
	LogOutput io.Writer
}

func NewApp(ctx context.Context, c *config.Config, opts Options) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	logger := logging.NewZerologLogger(logging.Options{
		Level:  c.LogLevel,
		Pretty: c.LogPretty,
		Output: opts.LogOutput,
	})

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	app := &App{
		config:      c,
		logger:      logger,
		db:          db,
		registry:    reg,
		metrics:     m,
		credentials: credential.NewSQLiteStore(db),
	}

	toaster := cli.NewToaster(opts.Out, 0, m)
	prompt := &cli.LoginPrompt{}

	app.gateway, err = client.New(client.Config{
		BaseURL: c.APIBaseURL,
		Timeout: c.RequestTimeout,
	}, client.Deps{
		Credentials: app.credentials,
		Alerts:      toaster,
		Navigator:   prompt,
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app.channel, err = notify.New(notify.Config{
		BaseURL:           c.APIBaseURL,
		ReconnectInterval: c.ReconnectInterval,
		MaxAttempts:       c.MaxReconnectAttempts,
		HeartbeatInterval: c.HeartbeatInterval,
		AlertDuration:     c.AlertDuration,
	}, notify.Deps{
		Alerts:  toaster,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app.session, err = session.New(session.Deps{
		Gateway:     app.gateway,
		Channel:     app.channel,
		Credentials: app.credentials,
		Alerts:      toaster,
		Navigator:   prompt,
		Logger:      logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	app.cli, err = cli.NewApp(cli.Deps{
		Session: app.session,
		Tickets: app.gateway,
		Hints:   app.credentials,
		Channel: app.channel,
		Prompt:  prompt,
		Logger:  logger,
		Out:     opts.Out,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return app, nil
}

// Session exposes the session store, mostly for tests.
func (app *App) Session() *session.Store { return app.session }

// initSignalHandler cancels ctx on SIGINT, SIGTERM or SIGQUIT. Handling stops
// once ctx is done.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// startMetricsServer serves /metrics on the configured address until
// stopMetricsServer is called. It is a no-op when no address is set.
func (app *App) startMetricsServer(ctx context.Context) error {
	if app.config.MetricsAddr == "" {
		return nil
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(app.registry)))

	app.mu.Lock()
	app.metricsSrv = e
	app.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(app.config.MetricsAddr)
	}()

	// surface bind errors before the REPL takes over the terminal
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	app.logger.Info(ctx, "metrics server started", "addr", app.config.MetricsAddr)
	return nil
}

func (app *App) stopMetricsServer(ctx context.Context) {
	app.mu.Lock()
	e := app.metricsSrv
	app.metricsSrv = nil
	app.mu.Unlock()

	if e == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		app.logger.Warn(ctx, "metrics server shutdown", "error", err)
	}
}

// Start restores a stored session and starts the metrics endpoint.
func (app *App) Start(ctx context.Context) error {
	if err := app.session.InitializeAuth(ctx); err != nil {
		return err
	}
	return app.startMetricsServer(ctx)
}

// Run starts the client and blocks in the REPL until the user exits, in is
// exhausted, or the process receives a termination signal.
func (app *App) Run(ctx context.Context, in io.Reader) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "api", app.config.APIBaseURL)

	app.initSignalHandler(ctx, cancelFunc)

	if err := app.Start(ctx); err != nil {
		app.Close(ctx)
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		app.cli.Run(ctx, in)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	app.Close(ctx)
	return nil
}

// Close disconnects the notification channel, stops the metrics server and
// closes the database. The stored credential is kept for the next start.
// Calling Close more than once is safe.
func (app *App) Close(ctx context.Context) {
	app.closeOnce.Do(func() {
		app.channel.Disconnect()
		app.stopMetricsServer(ctx)
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "close database", "error", err)
		}
	})
}
