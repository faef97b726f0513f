// Command mockapi serves the in-memory employee API for local demos of the
// console. Accounts: 100/director, 200/leader, 300/employee.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-erp/employee-console/internal/apiclient/apitest"
	"github.com/odyssey-erp/employee-console/internal/app"
	"github.com/odyssey-erp/employee-console/internal/employees"
	"github.com/odyssey-erp/employee-console/internal/roles"
)

func main() {
	if app.InTestMode() {
		return
	}
	addr := flag.String("addr", "127.0.0.1:3000", "listen address")
	flag.Parse()

	logger := app.NewLogger(&app.Config{LogLevel: "info"})
	api := apitest.NewUnstarted()
	birth, _ := employees.ParseDate("1985-06-15")
	api.AddUser("100", "director", employees.Employee{FirstName: "Dora", LastName: "Director", Email: "dora@example.com", Role: roles.Director, BirthDate: birth,
		Phones: []employees.Phone{{Number: "11999990000", Type: employees.PhoneMobile}}})
	api.AddUser("200", "leader", employees.Employee{FirstName: "Leo", LastName: "Leader", Email: "leo@example.com", Role: roles.Leader})
	api.AddUser("300", "employee", employees.Employee{FirstName: "Eve", LastName: "Employee", Email: "eve@example.com", Role: roles.Employee})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{Addr: *addr, Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	logger.Info("mock employee api listening", slog.String("addr", *addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("mock api", slog.Any("error", err))
		os.Exit(1)
	}
}
