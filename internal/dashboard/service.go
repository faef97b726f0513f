// Package dashboard summarises the employee mirror for the landing page.
package dashboard

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/roles"
)

// Mirror is the slice of the employee store the dashboard reads.
type Mirror interface {
	Refresh(ctx context.Context) error
	NeedsRefresh() bool
	Snapshot() employees.State
	Me(ctx context.Context, fallbackEmail string) (employees.Employee, bool)
}

// RoleCount is the head count for one role.
type RoleCount struct {
	Role  roles.Role `json:"role"`
	Count int        `json:"count"`
}

// Summary is the dashboard model. ByRole always lists every role in
// display order, zero counts included.
type Summary struct {
	Total    int         `json:"total"`
	ByRole   []RoleCount `json:"byRole"`
	Degraded bool        `json:"degraded"`
}

// Service computes summaries from the mirror.
type Service struct {
	store Mirror
}

// NewService constructs a Service.
func NewService(store Mirror) *Service {
	return &Service{store: store}
}

// Summary refetches when the mirror was never loaded or is stale. A failed
// refetch still returns counts from the last known items, flagged degraded.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var refreshErr error
	if s.store.NeedsRefresh() {
		if err := s.store.Refresh(ctx); err != nil {
			refreshErr = fmt.Errorf("dashboard: refresh: %w", err)
		}
	}
	summary := Summarise(s.store.Snapshot().Items)
	summary.Degraded = refreshErr != nil
	return summary, refreshErr
}

// Summarise counts items per role. Records with an unknown role count
// towards the total only.
func Summarise(items []employees.Employee) Summary {
	counts := make(map[roles.Role]int, 3)
	for _, e := range items {
		counts[e.Role]++
	}
	all := roles.All()
	summary := Summary{Total: len(items), ByRole: make([]RoleCount, 0, len(all))}
	for _, r := range all {
		summary.ByRole = append(summary.ByRole, RoleCount{Role: r, Count: counts[r]})
	}
	return summary
}
