package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/employee-console/internal/apiclient"
	"github.com/odyssey-erp/employee-console/internal/auth"
	"github.com/odyssey-erp/employee-console/internal/dashboard"
	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/observability"
	"github.com/odyssey-erp/employee-console/internal/rbac"
	"github.com/odyssey-erp/employee-console/internal/session"
	"github.com/odyssey-erp/employee-console/internal/shared"
	"github.com/odyssey-erp/employee-console/internal/view"
)

// Console is the wired object graph shared by the web server and the CLI.
type Console struct {
	Config   *Config
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Client   *apiclient.Client
	Sessions *session.Manager
	Store    *employees.Store
	Backends *Backends
}

// NewConsole connects the transport, token slot, session and mirror and
// restores any persisted session. notifier receives store notices.
func NewConsole(ctx context.Context, cfg *Config, logger *slog.Logger, notifier employees.Notifier) (*Console, error) {
	metrics := observability.NewMetrics()
	client, err := apiclient.New(apiclient.Config{
		BaseURL:         cfg.APIBaseURL,
		Timeout:         cfg.APITimeout,
		RetryMax:        cfg.APIRetryMax,
		BreakerFailures: cfg.APIBreakerFailures,
		BreakerCooldown: cfg.APIBreakerCooldown,
	}, apiclient.WithLogger(logger), apiclient.WithObserver(metrics))
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	backends := &Backends{}
	tokens, err := NewTokenStore(ctx, cfg, backends, logger)
	if err != nil {
		backends.Close()
		return nil, err
	}
	sessions := session.NewManager(tokens, client, session.WithLogger(logger))
	if err := sessions.Restore(ctx); err != nil {
		backends.Close()
		return nil, err
	}

	opts := []employees.StoreOption{employees.WithRecorder(metrics), employees.WithLogger(logger)}
	if notifier != nil {
		opts = append(opts, employees.WithNotifier(notifier))
	}
	store := employees.NewStore(client, opts...)
	sessions.OnChange(func(context.Context) { store.Reset() })
	return &Console{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Client:   client,
		Sessions: sessions,
		Store:    store,
		Backends: backends,
	}, nil
}

// Handler builds the web router on top of the console.
func (c *Console) Handler(ctx context.Context) (http.Handler, error) {
	if err := c.Config.ValidateServe(); err != nil {
		return nil, err
	}
	redisClient, err := c.Backends.RedisClient(ctx, c.Config)
	if err != nil {
		return nil, fmt.Errorf("browser sessions: %w", err)
	}
	templates, err := view.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	browser := shared.NewBrowserSessions(redisClient, "console_session", c.Config.SessionSecret, c.Config.SessionTTL, c.Config.IsProduction())
	csrf := shared.NewCSRFManager(c.Config.CSRFSecret)
	mw := rbac.Middleware{Sessions: c.Sessions, Logger: c.Logger}

	return NewRouter(RouterParams{
		Logger:           c.Logger,
		Config:           c.Config,
		BrowserSessions:  browser,
		CSRFManager:      csrf,
		AuthHandler:      auth.NewHandler(c.Logger, c.Sessions, browser, templates, csrf),
		DashboardHandler: dashboard.NewHandler(c.Logger, c.Store, c.Sessions, templates, csrf),
		EmployeesHandler: employees.NewHandler(c.Logger, c.Store, c.Sessions, templates, csrf, mw),
		RBACMiddleware:   mw,
		Metrics:          c.Metrics,
		APIState:         c.Client.BreakerState,
	}), nil
}

// Close releases backend connections.
func (c *Console) Close() {
	c.Backends.Close()
}
