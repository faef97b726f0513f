// Package employees mirrors the remote Employee collection and renders the
// CRUD screens on top of that mirror.
package employees

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/odyssey-erp/employee-console/internal/shared"
)

// API is the remote collaborator the store synchronises with.
type API interface {
	ListEmployees(ctx context.Context) ([]Employee, error)
	GetEmployee(ctx context.Context, id string) (Employee, error)
	GetEmployeeByEmail(ctx context.Context, email string) (Employee, error)
	Me(ctx context.Context) (Employee, error)
	CreateEmployee(ctx context.Context, payload CreatePayload) (Employee, error)
	UpdateEmployee(ctx context.Context, id string, payload UpdatePayload) (Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
}

// Notice kinds match the flash message kinds rendered by the layout.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
)

// Notifier surfaces transient messages to whoever drives the store.
type Notifier interface {
	Notify(ctx context.Context, kind, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, kind, message string)

func (f NotifierFunc) Notify(ctx context.Context, kind, message string) { f(ctx, kind, message) }

// Recorder counts mirror operations.
type Recorder interface {
	RecordStoreOp(op string, ok bool)
}

// State is a point-in-time copy of the store.
type State struct {
	Items   []Employee
	Loading bool
	Err     error
	Stale   bool
	Loaded  bool
}

// Store is the in-memory mirror. The mutex guards the mirror only while a
// result is applied; remote calls run unlocked and the last response wins.
type Store struct {
	api      API
	notifier Notifier
	recorder Recorder
	logger   *slog.Logger

	mu       sync.RWMutex
	items    []Employee
	inFlight int
	err      error
	stale    bool
	loaded   bool
	// mutations counts applied create/update/remove results; epoch counts
	// resets. Results that straddle a reset are dropped.
	mutations uint64
	epoch     uint64
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithNotifier sets the notification collaborator.
func WithNotifier(n Notifier) StoreOption {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore constructs an empty, unloaded store.
func NewStore(api API, opts ...StoreOption) *Store {
	s := &Store{
		api:      api,
		notifier: NotifierFunc(func(context.Context, string, string) {}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List replaces the mirror with the server collection. On failure the
// previous items are kept and the error is recorded.
func (s *Store) List(ctx context.Context) error {
	s.mu.Lock()
	s.err = nil
	s.inFlight++
	epoch := s.epoch
	s.mu.Unlock()

	items, err := s.api.ListEmployees(ctx)

	s.mu.Lock()
	s.inFlight--
	switch {
	case epoch != s.epoch:
		s.logger.Debug("discarding list result from a previous session")
	case err != nil:
		s.err = err
	default:
		if items == nil {
			items = []Employee{}
		}
		s.items = items
		s.loaded = true
	}
	s.mu.Unlock()

	s.record("list", err)
	if err != nil {
		s.logger.Warn("list employees", slog.Any("error", err))
		s.notifier.Notify(ctx, NoticeError, "Could not load employees")
		return fmt.Errorf("list employees: %w", err)
	}
	return nil
}

// Refresh lists and then acknowledges staleness, unless a mutation was
// applied while the list was in flight. Its staleness signal stands.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.RLock()
	mutations := s.mutations
	s.mu.RUnlock()

	if err := s.List(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	if s.mutations == mutations {
		s.stale = false
	}
	s.mu.Unlock()
	return nil
}

// GetByID fetches one record without touching the mirror. Any failure is
// reported as a miss.
func (s *Store) GetByID(ctx context.Context, id string) (Employee, bool) {
	s.clearErr()
	employee, err := s.api.GetEmployee(ctx, id)
	return s.lookupResult("get", employee, err)
}

// FindByEmail has the same semantics as GetByID.
func (s *Store) FindByEmail(ctx context.Context, email string) (Employee, bool) {
	s.clearErr()
	employee, err := s.api.GetEmployeeByEmail(ctx, email)
	return s.lookupResult("find_by_email", employee, err)
}

// Me resolves the signed-in user's record, falling back to an email lookup
// when the API does not expose /employees/me.
func (s *Store) Me(ctx context.Context, fallbackEmail string) (Employee, bool) {
	s.clearErr()
	employee, err := s.api.Me(ctx)
	if err == nil && employee.ID != "" {
		s.record("me", nil)
		return employee, true
	}
	if err != nil && errors.Is(err, shared.ErrUnauthorized) {
		s.record("me", err)
		return Employee{}, false
	}
	if fallbackEmail == "" {
		s.record("me", err)
		return Employee{}, false
	}
	return s.FindByEmail(ctx, fallbackEmail)
}

func (s *Store) lookupResult(op string, employee Employee, err error) (Employee, bool) {
	if err == nil && employee.ID == "" {
		err = shared.ErrMalformedResponse
	}
	s.record(op, err)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Debug("employee lookup failed", slog.String("op", op), slog.Any("error", err))
		}
		return Employee{}, false
	}
	return employee, true
}

// Create submits a new record and prepends the server's copy.
func (s *Store) Create(ctx context.Context, payload CreatePayload) (Employee, error) {
	epoch := s.clearErr()
	created, err := s.api.CreateEmployee(ctx, payload)
	if err == nil && strings.TrimSpace(created.ID) == "" {
		err = fmt.Errorf("%w: created employee has no id", shared.ErrMalformedResponse)
	}
	if err != nil {
		return Employee{}, s.fail(ctx, "create", "Could not create employee", err)
	}

	s.apply(epoch, func(current []Employee) []Employee {
		items := make([]Employee, 0, len(current)+1)
		items = append(items, created)
		for _, item := range current {
			if item.ID != created.ID {
				items = append(items, item)
			}
		}
		return items
	})

	s.succeed(ctx, "create", "Employee created")
	return created, nil
}

// Update submits changes and replaces the entry in place.
func (s *Store) Update(ctx context.Context, id string, payload UpdatePayload) (Employee, error) {
	epoch := s.clearErr()
	updated, err := s.api.UpdateEmployee(ctx, id, payload)
	if err == nil && strings.TrimSpace(updated.ID) == "" {
		err = fmt.Errorf("%w: updated employee has no id", shared.ErrMalformedResponse)
	}
	if err != nil {
		return Employee{}, s.fail(ctx, "update", "Could not update employee", err)
	}

	s.apply(epoch, func(current []Employee) []Employee {
		items := make([]Employee, len(current))
		copy(items, current)
		for i := range items {
			if items[i].ID == id {
				items[i] = updated
			}
		}
		return items
	})

	s.succeed(ctx, "update", "Employee updated")
	return updated, nil
}

// Remove deletes the record remotely and filters it from the mirror.
func (s *Store) Remove(ctx context.Context, id string) error {
	epoch := s.clearErr()
	if err := s.api.DeleteEmployee(ctx, id); err != nil {
		return s.fail(ctx, "remove", "Could not delete employee", err)
	}

	s.apply(epoch, func(current []Employee) []Employee {
		items := make([]Employee, 0, len(current))
		for _, item := range current {
			if item.ID != id {
				items = append(items, item)
			}
		}
		return items
	})

	s.succeed(ctx, "remove", "Employee deleted")
	return nil
}

// ClearStale acknowledges the staleness signal.
func (s *Store) ClearStale() {
	s.mu.Lock()
	s.stale = false
	s.mu.Unlock()
}

// Reset forgets the mirror. Called when the session that loaded it ends;
// results still in flight are dropped when they land.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = nil
	s.err = nil
	s.stale = false
	s.loaded = false
	s.epoch++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Employee, len(s.items))
	copy(items, s.items)
	return State{
		Items:   items,
		Loading: s.inFlight > 0,
		Err:     s.err,
		Stale:   s.stale,
		Loaded:  s.loaded,
	}
}

// Lookup finds an entry in the mirror without a remote call.
func (s *Store) Lookup(id string) (Employee, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Employee{}, false
}

// NeedsRefresh reports whether views should refetch before reading.
func (s *Store) NeedsRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.loaded || s.stale
}

// clearErr resets the recorded error and returns the current epoch.
func (s *Store) clearErr() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	return s.epoch
}

// apply rewrites the mirror with a confirmed mutation and marks it stale.
func (s *Store) apply(epoch uint64, mutate func([]Employee) []Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return
	}
	s.items = mutate(s.items)
	s.stale = true
	s.mutations++
}

func (s *Store) fail(ctx context.Context, op, message string, err error) error {
	s.record(op, err)
	s.logger.Warn("employee mutation failed", slog.String("op", op), slog.Any("error", err))
	s.notifier.Notify(ctx, NoticeError, message)
	return fmt.Errorf("%s employee: %w", op, err)
}

func (s *Store) succeed(ctx context.Context, op, message string) {
	s.record(op, nil)
	s.notifier.Notify(ctx, NoticeSuccess, message)
}

func (s *Store) record(op string, err error) {
	if s.recorder != nil {
		s.recorder.RecordStoreOp(op, err == nil)
	}
}
