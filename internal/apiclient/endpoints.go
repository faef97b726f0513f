package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/session"
	"github.com/odyssey-erp/employee-console/internal/shared"
)

type loginRequest struct {
	DocNumber string `json:"docNumber"`
	Password  string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token. The request never
// carries a token and never raises the unauthorized signal.
func (c *Client) Login(ctx context.Context, docNumber, password string) (string, error) {
	resp, err := c.do(ctx, call{route: "/auth/login", anonymous: true}, http.MethodPost, "/auth/login",
		loginRequest{DocNumber: docNumber, Password: password})
	if err != nil {
		switch StatusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return "", fmt.Errorf("%w: %v", shared.ErrInvalidCredentials, err)
		}
		return "", err
	}
	var out loginResponse
	if err := decode(resp, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", fmt.Errorf("%w: login response without token", shared.ErrMalformedResponse)
	}
	return out.Token, nil
}

type pagedEmployees struct {
	Items []employees.Employee `json:"items"`
	Total int                  `json:"total"`
}

// ListEmployees accepts a bare array or a {"items": [...]} page.
func (c *Client) ListEmployees(ctx context.Context) ([]employees.Employee, error) {
	resp, err := c.do(ctx, call{route: "/employees", idempotent: true}, http.MethodGet, "/employees", nil)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(bytes.TrimSpace(resp.body), []byte("{")) {
		var page pagedEmployees
		if err := decode(resp, &page); err != nil {
			return nil, err
		}
		return page.Items, nil
	}
	var items []employees.Employee
	if err := decode(resp, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) GetEmployee(ctx context.Context, id string) (employees.Employee, error) {
	if strings.TrimSpace(id) == "" {
		return employees.Employee{}, shared.ErrNotFound
	}
	return c.getEmployee(ctx, "/employees/{id}", "/employees/"+url.PathEscape(id))
}

func (c *Client) GetEmployeeByEmail(ctx context.Context, email string) (employees.Employee, error) {
	if strings.TrimSpace(email) == "" {
		return employees.Employee{}, shared.ErrNotFound
	}
	return c.getEmployee(ctx, "/employees/byEmail/{email}", "/employees/byEmail/"+url.PathEscape(email))
}

// Me returns the record of the token's subject.
func (c *Client) Me(ctx context.Context) (employees.Employee, error) {
	return c.getEmployee(ctx, "/employees/me", "/employees/me")
}

func (c *Client) getEmployee(ctx context.Context, route, path string) (employees.Employee, error) {
	resp, err := c.do(ctx, call{route: route, idempotent: true}, http.MethodGet, path, nil)
	if err != nil {
		return employees.Employee{}, err
	}
	var out employees.Employee
	if err := decode(resp, &out); err != nil {
		return employees.Employee{}, err
	}
	return out, nil
}

func (c *Client) CreateEmployee(ctx context.Context, payload employees.CreatePayload) (employees.Employee, error) {
	resp, err := c.do(ctx, call{route: "/employees"}, http.MethodPost, "/employees", payload)
	if err != nil {
		return employees.Employee{}, err
	}
	var out employees.Employee
	if err := decode(resp, &out); err != nil {
		return employees.Employee{}, err
	}
	return out, nil
}

func (c *Client) UpdateEmployee(ctx context.Context, id string, payload employees.UpdatePayload) (employees.Employee, error) {
	resp, err := c.do(ctx, call{route: "/employees/{id}", idempotent: true}, http.MethodPut, "/employees/"+url.PathEscape(id), payload)
	if err != nil {
		return employees.Employee{}, err
	}
	var out employees.Employee
	if err := decode(resp, &out); err != nil {
		return employees.Employee{}, err
	}
	return out, nil
}

// DeleteEmployee expects 204; any 2xx is accepted.
func (c *Client) DeleteEmployee(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return shared.ErrNotFound
	}
	_, err := c.do(ctx, call{route: "/employees/{id}", idempotent: true}, http.MethodDelete, "/employees/"+url.PathEscape(id), nil)
	return err
}

// IsUnavailable reports whether err means the API could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, shared.ErrUnavailable)
}

var (
	_ employees.API     = (*Client)(nil)
	_ session.Transport = (*Client)(nil)
)
