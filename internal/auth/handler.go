// Package auth serves the sign-in and sign-out pages of the console.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/employee-console/internal/session"
	"github.com/odyssey-erp/employee-console/internal/shared"
	"github.com/odyssey-erp/employee-console/internal/view"
)

const (
	msgInvalidCredentials = "Invalid document or password"
	msgUnavailable        = "The employee service is unavailable. Try again shortly."
	msgLoginFailed        = "Sign in failed. Try again."
	msgUnusableToken      = "The employee service issued a session this console cannot read."
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	sessions    *session.Manager
	browser     *shared.BrowserSessions
	templates   *view.Engine
	csrfManager *shared.CSRFManager
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, sessions *session.Manager, browser *shared.BrowserSessions, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:      logger,
		sessions:    sessions,
		browser:     browser,
		templates:   templates,
		csrfManager: csrf,
		validator:   validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	DocNumber string `validate:"required,min=3"`
	Password  string `validate:"required,min=3"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if h.sessions.HeldBy(browserID(r)) && !h.sessions.Expired() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, loginPageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		DocNumber: strings.TrimSpace(r.PostFormValue("docNumber")),
		Password:  r.PostFormValue("password"),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fieldErr := range fieldErrs {
				errs[fieldErr.Field()] = fieldMessage(fieldErr)
			}
		}
	}
	if len(errs) > 0 {
		h.render(w, r, http.StatusBadRequest, loginPageData{Form: loginForm{DocNumber: form.DocNumber}, Errors: errs})
		return
	}

	if err := h.sessions.Login(r.Context(), form.DocNumber, form.Password); err != nil {
		status := http.StatusUnauthorized
		switch {
		case errors.Is(err, shared.ErrInvalidCredentials):
			errs["general"] = msgInvalidCredentials
		case errors.Is(err, shared.ErrUnavailable):
			status = http.StatusServiceUnavailable
			errs["general"] = msgUnavailable
		default:
			status = http.StatusBadGateway
			errs["general"] = msgLoginFailed
			h.logger.Error("login", slog.Any("error", err))
		}
		h.render(w, r, status, loginPageData{Form: loginForm{DocNumber: form.DocNumber}, Errors: errs})
		return
	}

	identity := h.sessions.Identity()
	if identity == nil {
		h.logger.Error("login token carries no usable identity")
		if err := h.sessions.Logout(r.Context()); err != nil {
			h.logger.Warn("discard unusable token", slog.Any("error", err))
		}
		errs["general"] = msgUnusableToken
		h.render(w, r, http.StatusBadGateway, loginPageData{Form: loginForm{DocNumber: form.DocNumber}, Errors: errs})
		return
	}

	sess := shared.BrowserSessionFromContext(r.Context())
	if sess == nil || !h.sessions.Claim(sess.ID) {
		h.logger.Error("login without a browser session")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back, " + identity.Email})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout drops the browser session. The API session is only cleared
// when this browser holds it.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if h.sessions.HeldBy(browserID(r)) {
		if err := h.sessions.Logout(r.Context()); err != nil {
			h.logger.Warn("logout", slog.Any("error", err))
		}
	}
	if h.browser != nil {
		h.browser.Destroy(shared.BrowserSessionFromContext(r.Context()))
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func browserID(r *http.Request) string {
	if sess := shared.BrowserSessionFromContext(r.Context()); sess != nil {
		return sess.ID
	}
	return ""
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	sess := shared.BrowserSessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Sign in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, "pages/login.html", viewData, status); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		return "Must be at least " + fe.Param() + " characters"
	default:
		return fe.Error()
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}
