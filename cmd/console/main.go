package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/employee-console/cmd/console/cli"
	"github.com/odyssey-erp/employee-console/internal/app"
	"github.com/odyssey-erp/employee-console/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(cli.ExitFailure)
	}

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "serve" {
		os.Exit(serve(ctx, cfg))
	}
	os.Exit(runCommand(ctx, cfg, args))
}

func runCommand(ctx context.Context, cfg *app.Config, args []string) int {
	logger := app.NewCLILogger(cfg)
	console, err := app.NewConsole(ctx, cfg, logger, cli.Notifier(os.Stderr))
	if err != nil {
		logger.Error("start console", slog.Any("error", err))
		return cli.ExitFailure
	}
	defer console.Close()
	return cli.New(console.Sessions, console.Store, os.Stdout, os.Stderr).Run(ctx, args)
}

func serve(ctx context.Context, cfg *app.Config) int {
	logger := app.NewLogger(cfg)

	console, err := app.NewConsole(ctx, cfg, logger, shared.FlashNotifier{})
	if err != nil {
		logger.Error("start console", slog.Any("error", err))
		return cli.ExitFailure
	}
	defer console.Close()

	handler, err := console.Handler(ctx)
	if err != nil {
		logger.Error("build router", slog.Any("error", err))
		return cli.ExitFailure
	}

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           handler,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("api", cfg.APIBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		return cli.ExitFailure
	}
	return cli.ExitOK
}
