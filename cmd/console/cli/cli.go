// Package cli implements the console's terminal commands on top of the same
// session and employee store the web console uses.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/session"
	"github.com/odyssey-erp/employee-console/internal/shared"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitNotAllowed = 3
)

// CLI runs one command per invocation.
type CLI struct {
	sessions *session.Manager
	store    *employees.Store
	stdout   io.Writer
	stderr   io.Writer
}

// New builds a CLI. Nil writers default to the process streams.
func New(sessions *session.Manager, store *employees.Store, stdout, stderr io.Writer) *CLI {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &CLI{sessions: sessions, store: store, stdout: stdout, stderr: stderr}
}

// Notifier prints store notices to w, the terminal twin of flash messages.
func Notifier(w io.Writer) employees.Notifier {
	return employees.NotifierFunc(func(_ context.Context, kind, message string) {
		_, _ = fmt.Fprintf(w, "%s: %s\n", kind, message)
	})
}

// Run dispatches args[0] and returns the process exit code.
func (c *CLI) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		c.usage()
		return ExitUsage
	}
	switch args[0] {
	case "login":
		return c.login(ctx, args[1:])
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami(ctx, args[1:])
	case "employees":
		return c.employees(ctx, args[1:])
	case "dashboard":
		return c.dashboard(ctx, args[1:])
	case "help", "-h", "--help":
		c.usage()
		return ExitOK
	default:
		_, _ = fmt.Fprintf(c.stderr, "unknown command %q\n", args[0])
		c.usage()
		return ExitUsage
	}
}

func (c *CLI) usage() {
	_, _ = fmt.Fprint(c.stderr, `usage: console <command> [flags]

commands:
  serve                      run the web console (default)
  login -doc N -password P   sign in and persist the token
  logout                     sign out
  whoami [-json]             show the signed-in identity
  employees list [-json]     list employees
  employees show ID          show one employee
  employees delete ID        delete an employee (Director)
  dashboard [-json]          head count per role
`)
}

func (c *CLI) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// requireSession reports whether a usable session exists, printing why not.
func (c *CLI) requireSession(ctx context.Context) bool {
	if c.sessions.IsAuthenticated() && c.sessions.Expired() {
		c.sessions.HandleUnauthorized(ctx)
	}
	if !c.sessions.IsAuthenticated() {
		_, _ = fmt.Fprintln(c.stderr, "not signed in; run: console login -doc N -password P")
		return false
	}
	return true
}

// failure maps an error to an exit code after printing it.
func (c *CLI) failure(cmd string, err error) int {
	_, _ = fmt.Fprintf(c.stderr, "%s: %v\n", cmd, err)
	switch {
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrInvalidCredentials):
		return ExitNotAllowed
	default:
		return ExitFailure
	}
}
