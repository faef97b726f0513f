package employees

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/employee-console/internal/rbac"
	"github.com/odyssey-erp/employee-console/internal/roles"
	"github.com/odyssey-erp/employee-console/internal/session"
	"github.com/odyssey-erp/employee-console/internal/shared"
	"github.com/odyssey-erp/employee-console/internal/view"
)

// Handler serves the employee screens on top of the Store.
type Handler struct {
	logger    *slog.Logger
	store     *Store
	sessions  *session.Manager
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, store *Store, sessions *session.Manager, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		store:     store,
		sessions:  sessions,
		templates: templates,
		csrf:      csrf,
		rbac:      rbac,
		validator: NewValidator(),
	}
}

// MountRoutes registers employee routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(roles.CapRead))
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(roles.CapCreate))
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(roles.CapEdit))
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(roles.CapRemove))
		r.Post("/{id}/delete", h.remove)
	})
}

type listPageData struct {
	Items []Employee
	Error string
}

type showPageData struct {
	Employee Employee
}

type profilePageData struct {
	Employee *Employee
}

type errorPageData struct {
	Status  int
	Message string
}

type formPageData struct {
	CSRFToken  string
	Form       EmployeeForm
	Errors     FieldErrors
	Action     string
	Creating   bool
	PhoneTypes []PhoneType
	PhoneRows  []PhoneForm
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	data := listPageData{}
	if h.store.NeedsRefresh() || r.URL.Query().Get("refresh") == "1" {
		if err := h.store.Refresh(r.Context()); err != nil {
			data.Error = userMessage(err, "Could not load employees.")
		}
	}
	data.Items = h.store.Snapshot().Items
	h.render(w, r, "pages/employees_list.html", "Employees", data, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	employee, ok := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "Employee not found.")
		return
	}
	h.render(w, r, "pages/employee_show.html", employee.DisplayName(), showPageData{Employee: employee}, http.StatusOK)
}

// Profile renders the signed-in user's own record.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	data := profilePageData{}
	email := ""
	if identity := h.sessions.Identity(); identity != nil {
		email = identity.Email
	}
	if me, ok := h.store.Me(r.Context(), email); ok {
		data.Employee = &me
	}
	h.render(w, r, "pages/profile.html", "My profile", data, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, EmployeeForm{Role: roles.Employee}, nil, true, "", http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := FormFromValues(r.PostForm)
	if errs := ValidateForm(h.validator, form, true); errs != nil {
		h.renderForm(w, r, form, errs, true, "", http.StatusUnprocessableEntity)
		return
	}
	created, err := h.store.Create(r.Context(), NewCreatePayload(form))
	if err != nil {
		h.renderForm(w, r, form, FieldErrors{"general": userMessage(err, "Could not create employee.")}, true, "", statusFor(err))
		return
	}
	http.Redirect(w, r, "/employees/"+created.ID, http.StatusSeeOther)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, ok := h.store.GetByID(r.Context(), id)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "Employee not found.")
		return
	}
	h.renderForm(w, r, FormFromEmployee(current), nil, false, id, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	current, ok := h.store.Lookup(id)
	if !ok {
		current, ok = h.store.GetByID(r.Context(), id)
	}
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "Employee not found.")
		return
	}
	form := FormFromValues(r.PostForm)
	if errs := ValidateForm(h.validator, form, false); errs != nil {
		h.renderForm(w, r, form, errs, false, id, http.StatusUnprocessableEntity)
		return
	}
	if _, err := h.store.Update(r.Context(), id, NewUpdatePayload(form, current, h.sessions.Identity())); err != nil {
		h.renderForm(w, r, form, FieldErrors{"general": userMessage(err, "Could not update employee.")}, false, id, statusFor(err))
		return
	}
	http.Redirect(w, r, "/employees/"+id, http.StatusSeeOther)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.logger.Warn("remove employee", slog.Any("error", err))
	}
	http.Redirect(w, r, "/employees", http.StatusSeeOther)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, form EmployeeForm, errs FieldErrors, creating bool, id string, status int) {
	data := formPageData{
		Form:       form,
		Errors:     errs,
		Creating:   creating,
		PhoneTypes: PhoneTypes(),
		PhoneRows:  append(append([]PhoneForm(nil), form.Phones...), PhoneForm{}),
	}
	title := "New employee"
	data.Action = "/employees"
	if !creating {
		title = "Edit employee"
		data.Action = "/employees/" + id
	}
	sess := shared.BrowserSessionFromContext(r.Context())
	data.CSRFToken, _ = h.csrf.EnsureToken(r.Context(), sess)
	h.render(w, r, "pages/employee_form.html", title, data, status)
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, "pages/error.html", http.StatusText(status), errorPageData{Status: status, Message: message}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.BrowserSessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Identity:    h.sessions.Identity(),
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, template, viewData, status); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// userMessage turns store errors into text safe to show next to a form.
func userMessage(err error, fallback string) string {
	switch {
	case errors.Is(err, shared.ErrUnavailable):
		return "The employee service is unavailable. Try again shortly."
	case errors.Is(err, shared.ErrForbidden):
		return "Your role is not allowed to perform this change."
	case errors.Is(err, shared.ErrUnauthorized):
		return "Your session expired. Please sign in again."
	case errors.Is(err, shared.ErrNotFound):
		return "Employee not found."
	}
	if msg := apiMessage(err); msg != "" {
		return fallback + " " + msg
	}
	return fallback
}

// apiMessage extracts the server message carried by status errors.
func apiMessage(err error) string {
	var carrier interface{ APIMessage() string }
	if errors.As(err, &carrier) {
		return strings.TrimSpace(carrier.APIMessage())
	}
	return ""
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}
