// Package session owns the console's single authenticated session: the
// bearer token, the identity derived from it and the persistent slot the
// token survives restarts in.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/odyssey-erp/employee-console/internal/roles"
)

// ErrEmptyToken is returned when the API answers a login without a token.
var ErrEmptyToken = errors.New("session: login response carried no token")

// TokenStore is the single-slot persistent key-value collaborator.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Transport is the subset of the API client the manager depends on. The
// manager registers itself as token source and unauthorized listener.
type Transport interface {
	Login(ctx context.Context, docNumber, password string) (string, error)
	SetTokenSource(source func() string)
	OnUnauthorized(fn func(ctx context.Context))
}

// Manager is the only writer of the token and identity.
type Manager struct {
	store     TokenStore
	transport Transport
	clock     clockwork.Clock
	logger    *slog.Logger

	mu        sync.RWMutex
	token     string
	identity  *Identity
	holder    string
	listeners []func(ctx context.Context)
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock sets the clock used for expiry checks.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// NewManager builds a Manager and subscribes it to the transport.
func NewManager(store TokenStore, transport Transport, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		transport: transport,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if transport != nil {
		transport.SetTokenSource(m.Token)
		transport.OnUnauthorized(m.HandleUnauthorized)
	}
	return m
}

// OnChange registers fn to run after a login replaces the session and after
// the session is cleared.
func (m *Manager) OnChange(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Restore loads the persisted token, if any.
func (m *Manager) Restore(ctx context.Context) error {
	token, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("session: load token: %w", err)
	}
	m.setToken(token)
	if token != "" && m.Identity() == nil {
		m.logger.Warn("persisted token is not usable; session stays signed out")
	}
	return nil
}

// Login exchanges credentials for a token. On any failure the current
// token and identity are left untouched.
func (m *Manager) Login(ctx context.Context, docNumber, password string) error {
	token, err := m.transport.Login(ctx, docNumber, password)
	if err != nil {
		return fmt.Errorf("session: login: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if err := m.store.Save(ctx, token); err != nil {
		return fmt.Errorf("session: persist token: %w", err)
	}
	m.setToken(token)
	m.changed(ctx)

	if identity := m.Identity(); identity != nil {
		m.logger.Info("signed in", slog.String("email", identity.Email), slog.String("role", identity.Role.String()))
	} else {
		m.logger.Warn("api issued a token without usable identity claims")
	}
	return nil
}

// Logout clears the session. Memory is always cleared; a failure to clear
// the persistent slot is reported afterwards.
func (m *Manager) Logout(ctx context.Context) error {
	m.setToken("")
	m.changed(ctx)
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear token: %w", err)
	}
	return nil
}

// HandleUnauthorized is invoked by the transport when the API answers 401.
func (m *Manager) HandleUnauthorized(ctx context.Context) {
	if m.Token() == "" {
		return
	}
	m.logger.Warn("api rejected the session token; signing out")
	if err := m.Logout(ctx); err != nil {
		m.logger.Error("clear rejected token", slog.Any("error", err))
	}
}

// Claim binds the authenticated session to one holder, such as a browser
// session id. Other holders are refused by HeldBy until the next login.
func (m *Manager) Claim(holder string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || m.identity == nil || holder == "" {
		return false
	}
	m.holder = holder
	return true
}

// HeldBy reports whether the session is authenticated and claimed by holder.
func (m *Manager) HeldBy(holder string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && m.identity != nil && holder != "" && m.holder == holder
}

// Token returns the current bearer token or "".
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Identity returns a copy of the derived identity, or nil.
func (m *Manager) Identity() *Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil
	}
	identity := *m.identity
	return &identity
}

// IsAuthenticated reports token != "" and identity != nil.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && m.identity != nil
}

// Expired reports whether the current token's exp claim has passed.
func (m *Manager) Expired() bool {
	return m.Identity().ExpiredAt(m.clock.Now())
}

// Can evaluates a capability for the current identity.
func (m *Manager) Can(c roles.Capability) bool {
	identity := m.Identity()
	if identity == nil {
		return false
	}
	return roles.Allows(identity.Role, c)
}

// setToken is the single place identity gets recomputed. A new token
// always drops the previous claim.
func (m *Manager) setToken(token string) {
	identity := DecodeIdentity(token)
	m.mu.Lock()
	m.token = token
	m.identity = identity
	m.holder = ""
	m.mu.Unlock()
}

func (m *Manager) changed(ctx context.Context) {
	m.mu.RLock()
	listeners := append(([]func(context.Context))(nil), m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx)
	}
}
