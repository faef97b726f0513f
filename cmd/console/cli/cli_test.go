package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/employee-console/internal/apiclient"
	"github.com/odyssey-erp/employee-console/internal/apiclient/apitest"
	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/roles"
	"github.com/odyssey-erp/employee-console/internal/session"
)

type harness struct {
	api       *apitest.Server
	tokenPath string
	stdout    *bytes.Buffer
	stderr    *bytes.Buffer
	leo       employees.Employee
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := apitest.New(t)
	api.AddUser("100", "director-pass", employees.Employee{FirstName: "Dora", LastName: "Director", Email: "dora@example.com", Role: roles.Director})
	leo := api.AddUser("200", "leader-pass", employees.Employee{FirstName: "Leo", LastName: "Leader", Email: "leo@example.com", Role: roles.Leader})
	return &harness{api: api, tokenPath: filepath.Join(t.TempDir(), "token"), leo: leo}
}

// run builds a fresh process worth of state, as each CLI invocation does.
func (h *harness) run(t *testing.T, args ...string) int {
	t.Helper()
	ctx := context.Background()
	client, err := apiclient.New(apiclient.Config{BaseURL: h.api.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	sessions := session.NewManager(session.NewFileStore(h.tokenPath), client)
	require.NoError(t, sessions.Restore(ctx))
	h.stdout, h.stderr = new(bytes.Buffer), new(bytes.Buffer)
	store := employees.NewStore(client, employees.WithNotifier(Notifier(h.stderr)))
	return New(sessions, store, h.stdout, h.stderr).Run(ctx, args)
}

func TestUsage(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, ExitUsage, h.run(t))
	assert.Equal(t, ExitUsage, h.run(t, "bogus"))
	assert.Contains(t, h.stderr.String(), `unknown command "bogus"`)
	assert.Equal(t, ExitOK, h.run(t, "help"))
	assert.Equal(t, ExitUsage, h.run(t, "login", "-doc", "1"))
}

func TestCommandsRequireSession(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{{"whoami"}, {"employees", "list"}, {"dashboard"}} {
		assert.Equal(t, ExitNotAllowed, h.run(t, args...), args)
		assert.Contains(t, h.stderr.String(), "not signed in")
	}
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, ExitOK, h.run(t, "login", "-doc", "100", "-password", "director-pass"))
	assert.Contains(t, h.stdout.String(), "signed in as dora@example.com (Director)")

	require.Equal(t, ExitOK, h.run(t, "whoami", "-json"))
	var out struct {
		Email    string `json:"email"`
		Role     int    `json:"role"`
		RoleName string `json:"roleName"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &out))
	assert.Equal(t, "dora@example.com", out.Email)
	assert.Equal(t, 1, out.Role)

	require.Equal(t, ExitOK, h.run(t, "logout"))
	assert.Equal(t, ExitNotAllowed, h.run(t, "whoami"))
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, ExitNotAllowed, h.run(t, "login", "-doc", "100", "-password", "nope"))
	assert.Contains(t, h.stderr.String(), "invalid document or password")
}

func TestEmployeesListAndShow(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, ExitOK, h.run(t, "login", "-doc", "200", "-password", "leader-pass"))

	require.Equal(t, ExitOK, h.run(t, "employees", "list"))
	assert.Contains(t, h.stdout.String(), "Dora Director")
	assert.Contains(t, h.stdout.String(), "Leo Leader")

	require.Equal(t, ExitOK, h.run(t, "employees", "list", "-json"))
	var items []map[string]any
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &items))
	assert.Len(t, items, 2)

	require.Equal(t, ExitOK, h.run(t, "employees", "show", h.leo.ID))
	assert.Contains(t, h.stdout.String(), "leo@example.com")

	assert.Equal(t, ExitFailure, h.run(t, "employees", "show", "missing"))
	assert.Equal(t, ExitUsage, h.run(t, "employees", "show"))
}

func TestEmployeesDeleteRespectsRole(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, ExitOK, h.run(t, "login", "-doc", "200", "-password", "leader-pass"))

	assert.Equal(t, ExitNotAllowed, h.run(t, "employees", "delete", h.leo.ID))
	assert.Len(t, h.api.Employees(), 2)

	require.Equal(t, ExitOK, h.run(t, "login", "-doc", "100", "-password", "director-pass"))
	require.Equal(t, ExitOK, h.run(t, "employees", "delete", h.leo.ID))
	assert.Contains(t, h.stderr.String(), "success: Employee deleted")
	assert.Len(t, h.api.Employees(), 1)
}

func TestDashboardJSON(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, ExitOK, h.run(t, "login", "-doc", "100", "-password", "director-pass"))

	require.Equal(t, ExitOK, h.run(t, "dashboard", "-json"))
	var summary struct {
		Total  int `json:"total"`
		ByRole []struct {
			Role  int `json:"role"`
			Count int `json:"count"`
		} `json:"byRole"`
	}
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &summary))
	assert.Equal(t, 2, summary.Total)
	require.Len(t, summary.ByRole, 3)
	assert.Equal(t, 0, summary.ByRole[2].Count)
}

func TestRevokedTokenSignsOut(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, ExitOK, h.run(t, "login", "-doc", "100", "-password", "director-pass"))
	h.api.RevokeTokens()

	assert.Equal(t, ExitNotAllowed, h.run(t, "employees", "list"))
	assert.Equal(t, ExitNotAllowed, h.run(t, "whoami"))
}
