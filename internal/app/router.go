package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/employee-console/internal/auth"
	"github.com/odyssey-erp/employee-console/internal/dashboard"
	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/observability"
	"github.com/odyssey-erp/employee-console/internal/platform/httpx"
	"github.com/odyssey-erp/employee-console/internal/rbac"
	"github.com/odyssey-erp/employee-console/internal/shared"
	"github.com/odyssey-erp/employee-console/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	BrowserSessions  *shared.BrowserSessions
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	DashboardHandler *dashboard.Handler
	EmployeesHandler *employees.Handler
	RBACMiddleware   rbac.Middleware
	Metrics          *observability.Metrics
	// APIState reports the upstream circuit state for /healthz.
	APIState func() string
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:          params.Logger,
		Config:          params.Config,
		BrowserSessions: params.BrowserSessions,
		CSRFManager:     params.CSRFManager,
		Metrics:         params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok"}
		if params.APIState != nil {
			body["api"] = params.APIState()
		}
		httpx.JSON(w, http.StatusOK, body)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAuthenticated)
		params.DashboardHandler.MountRoutes(r)
		r.Route("/employees", params.EmployeesHandler.MountRoutes)
		r.Get("/profile", params.EmployeesHandler.Profile)
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
