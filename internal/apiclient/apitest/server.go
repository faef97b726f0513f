// Package apitest runs an in-memory employee API for tests and local demos.
package apitest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/platform/httpx"
	"github.com/odyssey-erp/employee-console/internal/roles"
)

// TB is the subset of testing.TB the server needs.
type TB interface {
	Helper()
	Cleanup(func())
}

type account struct {
	password   string
	employeeID string
}

type actorKey struct{}

// Server is an httptest server speaking the employee API contract.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	secret   []byte
	accounts map[string]account
	items    []employees.Employee
	failures []int
	omitID   bool
	epoch    int
	calls    map[string]int
	tokenTTL time.Duration
}

// New starts a server closed on test cleanup.
func New(t TB) *Server {
	t.Helper()
	s := NewUnstarted()
	s.Start()
	t.Cleanup(s.Close)
	return s
}

// NewUnstarted builds a server without starting it.
func NewUnstarted() *Server {
	s := &Server{
		secret:   []byte(uuid.NewString()),
		accounts: make(map[string]account),
		calls:    make(map[string]int),
		tokenTTL: time.Hour,
	}
	s.Server = httptest.NewUnstartedServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count, s.inject)
	r.Post("/auth/login", s.login)
	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/employees", s.list)
		r.Post("/employees", s.create)
		r.Get("/employees/me", s.me)
		r.Get("/employees/byEmail/{email}", s.byEmail)
		r.Get("/employees/{id}", s.get)
		r.Put("/employees/{id}", s.update)
		r.Delete("/employees/{id}", s.remove)
	})
	return r
}

// Handler returns the API router, for serving it on a fixed address.
func (s *Server) Handler() http.Handler {
	return s.Config.Handler
}

// AddUser registers login credentials for e, seeding it when new.
func (s *Server) AddUser(docNumber, password string, e employees.Employee) employees.Employee {
	e.DocNumber = docNumber
	seeded := s.Seed(e)[0]
	s.mu.Lock()
	s.accounts[docNumber] = account{password: password, employeeID: seeded.ID}
	s.mu.Unlock()
	return seeded
}

// Seed appends records, assigning ids and full names where missing.
func (s *Server) Seed(items ...employees.Employee) []employees.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]employees.Employee, 0, len(items))
	for _, e := range items {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.FullName = strings.TrimSpace(e.FirstName + " " + e.LastName)
		if e.Phones == nil {
			e.Phones = []employees.Phone{}
		}
		s.items = append(s.items, e)
		out = append(out, e)
	}
	return out
}

// IssueToken signs a token for e that expires after ttl.
func (s *Server) IssueToken(e employees.Employee, ttl time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issue(e, ttl)
}

func (s *Server) issue(e employees.Employee, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":   e.ID,
		"email": e.Email,
		"role":  e.Role.String(),
		"epoch": s.epoch,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token
}

// FailNext answers the next n requests with status.
func (s *Server) FailNext(status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures = append(s.failures, status)
	}
}

// OmitIDOnCreate makes create answer 201 without an id.
func (s *Server) OmitIDOnCreate(omit bool) {
	s.mu.Lock()
	s.omitID = omit
	s.mu.Unlock()
}

// RevokeTokens invalidates every token issued so far.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.epoch++
	s.mu.Unlock()
}

// Calls returns how many requests hit method and path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// Employees returns the server-side collection.
func (s *Server) Employees() []employees.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]employees.Employee, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := 0
		if len(s.failures) > 0 {
			status = s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			httpx.Problem(w, status, http.StatusText(status), "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return s.secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}
		s.mu.Lock()
		epoch := s.epoch
		s.mu.Unlock()
		if e, _ := claims["epoch"].(float64); int(e) != epoch {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "token revoked")
			return
		}
		sub, _ := claims.GetSubject()
		ctx := context.WithValue(r.Context(), actorKey{}, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type credentials struct {
	DocNumber string `json:"docNumber"`
	Password  string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid body")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[in.DocNumber]
	if !ok || acc.password != in.Password {
		httpx.JSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	idx := s.indexOf(acc.employeeID)
	if idx < 0 {
		httpx.JSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"token": s.issue(s.items[idx], s.tokenTTL)})
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, s.Employees())
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	s.writeEmployee(w, s.find(func(e employees.Employee) bool { return e.ID == actorID(r) }))
}

func (s *Server) byEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	s.writeEmployee(w, s.find(func(e employees.Employee) bool { return strings.EqualFold(e.Email, email) }))
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.writeEmployee(w, s.find(func(e employees.Employee) bool { return e.ID == id }))
}

func (s *Server) writeEmployee(w http.ResponseWriter, e *employees.Employee) {
	if e == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "employee not found")
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var in employees.CreatePayload
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if in.Password == "" || in.Email == "" || !in.Role.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email, role and password are required")
		return
	}
	if actor := s.actor(r); actor == nil || !roles.CanCreate(actor.Role) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "role may not create employees")
		return
	}

	s.mu.Lock()
	for _, e := range s.items {
		if strings.EqualFold(e.Email, in.Email) {
			s.mu.Unlock()
			httpx.Problem(w, http.StatusConflict, "Duplicate", "email already registered")
			return
		}
	}
	created := employees.Employee{
		ID:        uuid.NewString(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		FullName:  strings.TrimSpace(in.FirstName + " " + in.LastName),
		Email:     in.Email,
		DocNumber: in.DocNumber,
		Role:      in.Role,
		BirthDate: in.BirthDate,
		Phones:    in.Phones,
	}
	s.items = append(s.items, created)
	s.accounts[in.DocNumber] = account{password: in.Password, employeeID: created.ID}
	omit := s.omitID
	s.mu.Unlock()

	created.FullName = ""
	if omit {
		created.ID = ""
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in employees.UpdatePayload
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	actor := s.actor(r)
	if actor == nil {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "unknown actor")
		return
	}
	if actor.ID != id && !roles.CanEdit(actor.Role) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "role may not edit employees")
		return
	}
	if in.NewRole != nil && (in.IsOwner || actor.Role != roles.Director) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "role change not allowed")
		return
	}

	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		httpx.Problem(w, http.StatusNotFound, "Not Found", "employee not found")
		return
	}
	e := s.items[idx]
	e.FirstName, e.LastName = in.FirstName, in.LastName
	e.FullName = strings.TrimSpace(in.FirstName + " " + in.LastName)
	e.Email, e.DocNumber = in.Email, in.DocNumber
	e.BirthDate = in.BirthDate
	e.Phones = in.Phones
	if in.NewRole != nil {
		e.Role = *in.NewRole
	}
	s.items[idx] = e
	s.mu.Unlock()

	e.FullName = ""
	httpx.JSON(w, http.StatusOK, e)
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if actor := s.actor(r); actor == nil || !roles.CanRemove(actor.Role) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "role may not remove employees")
		return
	}
	s.mu.Lock()
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		httpx.Problem(w, http.StatusNotFound, "Not Found", "employee not found")
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) actor(r *http.Request) *employees.Employee {
	id := actorID(r)
	return s.find(func(e employees.Employee) bool { return e.ID == id })
}

func (s *Server) find(match func(employees.Employee) bool) *employees.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items {
		if match(e) {
			found := e
			return &found
		}
	}
	return nil
}

// indexOf must be called with mu held.
func (s *Server) indexOf(id string) int {
	for i, e := range s.items {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func actorID(r *http.Request) string {
	id, _ := r.Context().Value(actorKey{}).(string)
	return id
}
