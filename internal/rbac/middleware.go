// Package rbac gates HTTP handlers on the signed-in identity and the
// capabilities its role grants.
package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/employee-console/internal/platform/httpx"
	"github.com/odyssey-erp/employee-console/internal/roles"
	"github.com/odyssey-erp/employee-console/internal/session"
	"github.com/odyssey-erp/employee-console/internal/shared"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/auth/login"

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Sessions *session.Manager
	Logger   *slog.Logger
}

// RequireAuthenticated lets the request through only when the browser
// session is the one that signed in and the token is still usable. An
// expired token is treated like a 401 from the API.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.BrowserSessionFromContext(r.Context())
		holder := ""
		if sess != nil {
			holder = sess.ID
		}
		if m.Sessions.HeldBy(holder) && m.Sessions.Expired() {
			if m.Logger != nil {
				m.Logger.Info("session token expired", slog.String("path", r.URL.Path))
			}
			m.Sessions.HandleUnauthorized(r.Context())
			if sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Your session expired. Please sign in again."})
			}
		}
		if !m.Sessions.HeldBy(holder) {
			if isAPIRequest(r) {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
				return
			}
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAny ensures the identity holds at least one of the capabilities.
func (m Middleware) RequireAny(caps ...roles.Capability) func(http.Handler) http.Handler {
	return m.require(caps, func(identity *session.Identity) bool {
		for _, c := range caps {
			if roles.Allows(identity.Role, c) {
				return true
			}
		}
		return false
	})
}

// RequireAll ensures the identity holds every capability.
func (m Middleware) RequireAll(caps ...roles.Capability) func(http.Handler) http.Handler {
	return m.require(caps, func(identity *session.Identity) bool {
		for _, c := range caps {
			if !roles.Allows(identity.Role, c) {
				return false
			}
		}
		return true
	})
}

func (m Middleware) require(caps []roles.Capability, allowed func(*session.Identity) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(caps) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			identity := m.Sessions.Identity()
			if identity == nil {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			if allowed(identity) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("capability denied",
					slog.String("role", identity.Role.String()),
					slog.String("path", r.URL.Path),
				)
			}
			if isAPIRequest(r) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "role lacks the required capability")
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.Contains(r.Header.Get("Accept"), "application/json")
}
