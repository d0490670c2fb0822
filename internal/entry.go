// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tracmark/internal/api"
	"github.com/starford/tracmark/internal/mcpserver"
	"github.com/starford/tracmark/internal/migrate"
	"github.com/starford/tracmark/internal/sse"
	"github.com/starford/tracmark/internal/state"
	"github.com/starford/tracmark/internal/storage"
	"github.com/starford/tracmark/internal/trac"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func (a *application) runOptions() migrate.Options {
	cfg := a.config
	return migrate.Options{
		Since:   cfg.Filter.SinceTime(),
		Page:    cfg.Filter.Page,
		Ignore:  cfg.Filter.Ignore,
		Force:   cfg.Migrate.Force,
		Workers: cfg.Migrate.Workers,
	}
}

// openService opens the Trac database, the ledger and the output trees.
// The returned close function releases the databases.
func (a *application) openService(logger *slog.Logger) (*migrate.Service, func(), error) {
	cfg := a.config

	logger.Info("Configuration loaded",
		slog.String("trac_env", cfg.Trac.EnvPath),
		slog.String("trac_db", cfg.Trac.Database()),
		slog.String("wiki_dir", cfg.Output.WikiDir),
		slog.String("attachments_dir", cfg.Output.AttachmentsDir),
		slog.String("state_path", cfg.State.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	src, err := trac.Open(cfg.Trac.EnvPath, cfg.Trac.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open trac: %w", err)
	}
	ledger, err := state.Open(cfg.State.Path)
	if err != nil {
		src.Close()
		return nil, nil, fmt.Errorf("open state: %w", err)
	}
	closeAll := func() {
		ledger.Close()
		src.Close()
	}

	wiki, err := storage.NewFS(cfg.Output.WikiDir)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("init wiki storage: %w", err)
	}
	files, err := storage.NewFS(cfg.Output.AttachmentsDir)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("init attachment storage: %w", err)
	}

	svc, err := migrate.NewService(src, ledger, wiki, files, migrate.Config{
		Namespaces:     cfg.Links.Namespaces(),
		Extension:      cfg.Output.Extension,
		AttachmentsURL: cfg.Output.AttachmentsURL,
	}, logger)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("init migration: %w", err)
	}
	return svc, closeAll, nil
}

// Run migrates the wiki once. With migrate.watch set it then keeps
// migrating whenever the Trac database changes, until ctx is cancelled or
// the process is interrupted.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	svc, closeAll, err := app.openService(logger)
	if err != nil {
		return err
	}
	defer closeAll()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runOpts := app.runOptions()
	sum, err := svc.Run(ctx, runOpts, nil)
	if err != nil {
		return err
	}
	if len(sum.Failures) > 0 {
		return fmt.Errorf("%d pages failed", len(sum.Failures))
	}

	if !app.config.Migrate.Watch {
		return nil
	}
	return svc.Watch(ctx, app.config.Trac.Database(), runOpts, migrate.DefaultDebounce, nil)
}

// Convert reads Trac markup from in and writes the Markdown to out.
// Diagnostics go to the log.
func Convert(ctx context.Context, in io.Reader, out io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	svc, closeAll, err := app.openService(logger)
	if err != nil {
		return err
	}
	defer closeAll()

	text, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	conv, err := svc.Convert(ctx, app.config.Filter.Page, string(text))
	if err != nil {
		return err
	}
	for _, d := range conv.Diagnostics {
		logger.Warn("diagnostic",
			slog.String("kind", d.Kind),
			slog.String("subject", d.Subject),
			slog.String("message", d.Message))
	}
	_, err = io.WriteString(out, conv.Markdown)
	return err
}

// ServeMCP exposes the conversion tools over MCP on stdin/stdout.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	svc, closeAll, err := app.openService(logger)
	if err != nil {
		return err
	}
	defer closeAll()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(svc, app.runOptions()).ServeStdio()
}

// Serve starts the HTTP API with the given options.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	svc, closeAll, err := app.openService(logger)
	if err != nil {
		return err
	}
	defer closeAll()

	broker := sse.NewBroker(time.Second)
	defer broker.Close()
	emit := func(ev migrate.Event) {
		broker.PublishRunEvent(ev.Kind, ev)
	}

	g, gCtx := errgroup.WithContext(ctx)

	handler := api.NewHandler(svc, gCtx, app.runOptions(), emit)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.Migrate.Watch {
		g.Go(func() error {
			return svc.Watch(gCtx, cfg.Trac.Database(), app.runOptions(), migrate.DefaultDebounce, emit)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")
