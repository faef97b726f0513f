package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/odyssey-erp/employee-console/internal/dashboard"
	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/roles"
	"github.com/odyssey-erp/employee-console/internal/shared"
	"github.com/odyssey-erp/employee-console/internal/view"
)

func (c *CLI) login(ctx context.Context, args []string) int {
	fs := c.flags("login")
	doc := fs.String("doc", "", "document number")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if len(strings.TrimSpace(*doc)) < 3 || len(*password) < 3 {
		_, _ = fmt.Fprintln(c.stderr, "login: -doc and -password are required (at least 3 characters)")
		return ExitUsage
	}
	if err := c.sessions.Login(ctx, strings.TrimSpace(*doc), *password); err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			_, _ = fmt.Fprintln(c.stderr, "login: invalid document or password")
			return ExitNotAllowed
		}
		return c.failure("login", err)
	}
	identity := c.sessions.Identity()
	if identity == nil {
		_, _ = fmt.Fprintln(c.stdout, "signed in")
		return ExitOK
	}
	_, _ = fmt.Fprintf(c.stdout, "signed in as %s (%s)\n", identity.Email, identity.Role)
	return ExitOK
}

func (c *CLI) logout(ctx context.Context) int {
	if err := c.sessions.Logout(ctx); err != nil {
		return c.failure("logout", err)
	}
	_, _ = fmt.Fprintln(c.stdout, "signed out")
	return ExitOK
}

type whoamiOutput struct {
	Subject      string             `json:"subject,omitempty"`
	Email        string             `json:"email"`
	Role         roles.Role         `json:"role"`
	RoleName     string             `json:"roleName"`
	ExpiresAt    string             `json:"expiresAt,omitempty"`
	Capabilities roles.Capabilities `json:"capabilities"`
}

func (c *CLI) whoami(ctx context.Context, args []string) int {
	fs := c.flags("whoami")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if !c.requireSession(ctx) {
		return ExitNotAllowed
	}
	identity := c.sessions.Identity()
	out := whoamiOutput{
		Subject:      identity.SubjectID,
		Email:        identity.Email,
		Role:         identity.Role,
		RoleName:     identity.Role.String(),
		Capabilities: identity.Capabilities(),
	}
	if !identity.ExpiresAt.IsZero() {
		out.ExpiresAt = identity.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if *asJSON {
		return c.writeJSON("whoami", out)
	}
	_, _ = fmt.Fprintf(c.stdout, "%s\nrole: %s\n", out.Email, out.RoleName)
	if out.ExpiresAt != "" {
		_, _ = fmt.Fprintf(c.stdout, "expires: %s\n", out.ExpiresAt)
	}
	return ExitOK
}

func (c *CLI) employees(ctx context.Context, args []string) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(c.stderr, "employees: expected list, show or delete")
		return ExitUsage
	}
	switch args[0] {
	case "list":
		return c.employeesList(ctx, args[1:])
	case "show":
		return c.employeesShow(ctx, args[1:])
	case "delete":
		return c.employeesDelete(ctx, args[1:])
	default:
		_, _ = fmt.Fprintf(c.stderr, "employees: unknown subcommand %q\n", args[0])
		return ExitUsage
	}
}

func (c *CLI) employeesList(ctx context.Context, args []string) int {
	fs := c.flags("employees list")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if !c.requireSession(ctx) {
		return ExitNotAllowed
	}
	if err := c.store.List(ctx); err != nil {
		return c.failure("employees list", err)
	}
	items := c.store.Snapshot().Items
	if *asJSON {
		return c.writeJSON("employees list", items)
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tDOCUMENT\tROLE\tBIRTH DATE")
	for _, e := range items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.ID, e.DisplayName(), e.Email, e.DocNumber, e.Role, view.FormatDate(e.BirthDate))
	}
	_ = tw.Flush()
	return ExitOK
}

func (c *CLI) employeesShow(ctx context.Context, args []string) int {
	fs := c.flags("employees show")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(c.stderr, "employees show: expected one ID")
		return ExitUsage
	}
	if !c.requireSession(ctx) {
		return ExitNotAllowed
	}
	employee, ok := c.store.GetByID(ctx, fs.Arg(0))
	if !ok {
		_, _ = fmt.Fprintf(c.stderr, "employees show: %s not found\n", fs.Arg(0))
		return ExitFailure
	}
	if *asJSON {
		return c.writeJSON("employees show", employee)
	}
	c.printEmployee(employee)
	return ExitOK
}

func (c *CLI) printEmployee(e employees.Employee) {
	_, _ = fmt.Fprintf(c.stdout, "%s\n", e.DisplayName())
	_, _ = fmt.Fprintf(c.stdout, "  id:         %s\n", e.ID)
	_, _ = fmt.Fprintf(c.stdout, "  email:      %s\n", e.Email)
	_, _ = fmt.Fprintf(c.stdout, "  document:   %s\n", e.DocNumber)
	_, _ = fmt.Fprintf(c.stdout, "  role:       %s\n", e.Role)
	if date := view.FormatDate(e.BirthDate); date != "" {
		_, _ = fmt.Fprintf(c.stdout, "  birth date: %s\n", date)
	}
	for _, p := range e.Phones {
		_, _ = fmt.Fprintf(c.stdout, "  phone:      %s (%s)\n", p.Number, p.Type)
	}
}

func (c *CLI) employeesDelete(ctx context.Context, args []string) int {
	fs := c.flags("employees delete")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(c.stderr, "employees delete: expected one ID")
		return ExitUsage
	}
	if !c.requireSession(ctx) {
		return ExitNotAllowed
	}
	if !c.sessions.Can(roles.CapRemove) {
		_, _ = fmt.Fprintln(c.stderr, "employees delete: your role may not remove employees")
		return ExitNotAllowed
	}
	if err := c.store.Remove(ctx, fs.Arg(0)); err != nil {
		return c.failure("employees delete", err)
	}
	return ExitOK
}

func (c *CLI) dashboard(ctx context.Context, args []string) int {
	fs := c.flags("dashboard")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if !c.requireSession(ctx) {
		return ExitNotAllowed
	}
	summary, err := dashboard.NewService(c.store).Summary(ctx)
	if err != nil && !c.store.Snapshot().Loaded {
		return c.failure("dashboard", err)
	}
	if *asJSON {
		return c.writeJSON("dashboard", summary)
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	for _, rc := range summary.ByRole {
		_, _ = fmt.Fprintf(tw, "%s\t%d\n", rc.Role, rc.Count)
	}
	_, _ = fmt.Fprintf(tw, "Total\t%d\n", summary.Total)
	_ = tw.Flush()
	if summary.Degraded {
		_, _ = fmt.Fprintln(c.stderr, "dashboard: counts may be out of date")
	}
	return ExitOK
}

func (c *CLI) writeJSON(cmd string, v any) int {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(c.stderr, "%s: encode json: %v\n", cmd, err)
		return ExitFailure
	}
	return ExitOK
}
