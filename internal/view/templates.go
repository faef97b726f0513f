package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/employee-console/internal/roles"
	"github.com/odyssey-erp/employee-console/internal/session"
	"github.com/odyssey-erp/employee-console/internal/shared"
	"github.com/odyssey-erp/employee-console/web"
)

// DisplayDateLayout renders dates as dd/mm/yyyy.
const DisplayDateLayout = "02/01/2006"

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Identity    *session.Identity
	Data        any
}

type dateLike interface {
	IsZero() bool
	Format(layout string) string
}

// FormatDate renders a date for display; zero values render empty.
func FormatDate(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		t, err := time.Parse("2006-01-02", strings.TrimSpace(v))
		if err != nil {
			return ""
		}
		return t.Format(DisplayDateLayout)
	case dateLike:
		if v.IsZero() {
			return ""
		}
		return v.Format(DisplayDateLayout)
	}
	return ""
}

// Can reports whether identity holds the named capability. Short names
// ("edit") resolve to the employees namespace.
func Can(identity *session.Identity, capability string) bool {
	if identity == nil {
		return false
	}
	if !strings.Contains(capability, ".") {
		capability = "employees." + capability
	}
	return roles.Allows(identity.Role, roles.Capability(capability))
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"formatDate": FormatDate,
		"can":        Can,
		"roles":      roles.All,
		"active": func(current, prefix string) bool {
			if prefix == "/" {
				return current == "/"
			}
			return strings.HasPrefix(current, prefix)
		},
		"percent": func(part, total int) int {
			if total == 0 {
				return 0
			}
			return part * 100 / total
		},
	}
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(funcMap()).ParseFS(web.Templates, "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	return e.RenderStatus(w, name, data, http.StatusOK)
}

// RenderStatus buffers the page so a template error never leaves a half
// written response behind.
func (e *Engine) RenderStatus(w http.ResponseWriter, name string, data TemplateData, status int) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
