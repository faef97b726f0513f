package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/platform/httpx"
	"github.com/odyssey-erp/employee-console/internal/session"
	"github.com/odyssey-erp/employee-console/internal/shared"
	"github.com/odyssey-erp/employee-console/internal/view"
)

const requestTimeout = 10 * time.Second

const msgDegraded = "Employee data could not be refreshed; counts may be out of date."

// Handler serves the dashboard page and its JSON twin.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	store     Mirror
	sessions  *session.Manager
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs the dashboard handler.
func NewHandler(logger *slog.Logger, store Mirror, sessions *session.Manager, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   NewService(store),
		store:     store,
		sessions:  sessions,
		templates: templates,
		csrf:      csrf,
	}
}

// MountRoutes registers dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handlePage)
	r.Get("/api/dashboard", h.handleJSON)
}

type pageData struct {
	Error   string
	Me      *employees.Employee
	Summary Summary
}

type jsonPayload struct {
	Summary
	Me *employees.Employee `json:"me,omitempty"`
}

// load fans out the summary and the signed-in user's record.
func (h *Handler) load(ctx context.Context) (Summary, *employees.Employee, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		summary    Summary
		summaryErr error
		me         *employees.Employee
	)
	email := ""
	if identity := h.sessions.Identity(); identity != nil {
		email = identity.Email
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, summaryErr = h.service.Summary(gctx)
		return nil
	})
	g.Go(func() error {
		if found, ok := h.store.Me(gctx, email); ok {
			me = &found
		}
		return nil
	})
	_ = g.Wait()
	return summary, me, summaryErr
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	summary, me, err := h.load(r.Context())
	data := pageData{Me: me, Summary: summary}
	if err != nil {
		h.logger.Warn("dashboard summary", slog.Any("error", err))
		data.Error = msgDegraded
	}

	sess := shared.BrowserSessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Dashboard",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    h.sessions.Identity(),
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/dashboard.html", viewData); err != nil {
		h.logger.Error("render dashboard", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleJSON(w http.ResponseWriter, r *http.Request) {
	summary, me, err := h.load(r.Context())
	if err != nil && !h.store.Snapshot().Loaded {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, jsonPayload{Summary: summary, Me: me})
}
