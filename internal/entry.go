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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/shelf/internal/api"
	"github.com/starford/shelf/internal/catalog"
	"github.com/starford/shelf/internal/library"
	"github.com/starford/shelf/internal/mcpserver"
	"github.com/starford/shelf/internal/shell"
	"github.com/starford/shelf/internal/sse"
	"github.com/starford/shelf/internal/storage"
	"github.com/starford/shelf/internal/vfs"
)

// runtime is the opened catalog, library and filesystem shared by every
// entry point.
type runtime struct {
	store storage.Provider
	db    *library.DB
	fs    *vfs.FS
	svc   *catalog.Service
}

func (rt *runtime) Close() error { return rt.db.Close() }

// open prepares the catalog directory, opens the library and brings it up
// to date with the records on disk. A failed sync is logged, not fatal.
func (a *application) open(ctx context.Context, logger *slog.Logger) (*runtime, error) {
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config

	if err := os.MkdirAll(cfg.Library.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Library.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := library.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init library: %w", err)
	}

	if _, err := library.Sync(ctx, db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	fsys := vfs.New(db)
	return &runtime{store: store, db: db, fs: fsys, svc: catalog.NewService(store, db)}, nil
}

// cliLogger writes text logs to errOut. Interactive commands keep the terminal
// for results, so only warnings and above are shown unless the configured
// level is stricter.
func (a *application) cliLogger() *slog.Logger {
	level := slog.LevelWarn
	if a.config != nil && a.config.App.LogLevel > level {
		level = a.config.App.LogLevel
	}
	return slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: level}))
}

// Run starts the HTTP server, the catalog watcher and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_path", cfg.Library.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt, err := app.open(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(rt.svc, rt.fs, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, broker.PublishVFSChange)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start catalog watcher with SSE callback.
	g.Go(func() error {
		if err := library.Watch(gCtx, rt.db, rt.store, logger, broker.PublishBookEvent); err != nil {
			logger.Error("catalog watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
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

		logger.Info("Shutting down server...")

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

// errShutdown cancels the group's context so the watcher stops with the
// server.
var errShutdown = errors.New("shutdown")

// Shell runs the interactive REPL until exit or EOF.
func Shell(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	logger := app.cliLogger()
	rt, err := app.open(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := app.config.Shell
	sh := shell.New(rt.fs, shell.WithLogger(logger))
	repl := shell.NewREPL(sh, app.out, app.errOut,
		shell.WithPrompt(cfg.Prompt),
		shell.WithHistoryFile(expandHome(cfg.HistoryFile)),
		shell.WithColor(cfg.Color),
	)
	return repl.Run(ctx)
}

// Exec runs one command line and prints its result.
func Exec(ctx context.Context, line string, opts ...Option) error {
	return withShell(ctx, opts, func(sh *shell.Shell, w io.Writer, r *shell.Renderer) error {
		out, err := sh.Exec(ctx, line)
		if err != nil {
			return err
		}
		printOutput(w, r, out)
		return nil
	})
}

// RunCommand invokes one shell command with pre-split arguments and
// prints its result.
func RunCommand(ctx context.Context, name string, args []string, opts ...Option) error {
	return withShell(ctx, opts, func(sh *shell.Shell, w io.Writer, r *shell.Renderer) error {
		out, err := sh.Run(ctx, name, args...)
		if err != nil {
			return err
		}
		printOutput(w, r, out)
		return nil
	})
}

func withShell(ctx context.Context, opts []Option, fn func(*shell.Shell, io.Writer, *shell.Renderer) error) error {
	app := newApplication(opts)
	logger := app.cliLogger()
	rt, err := app.open(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	sh := shell.New(rt.fs, shell.WithLogger(logger))
	return fn(sh, app.out, shell.NewRenderer(app.out, app.config.Shell.Color))
}

func printOutput(w io.Writer, r *shell.Renderer, out *shell.Output) {
	if out.Text == "" {
		return
	}
	fmt.Fprintln(w, strings.TrimSuffix(r.Output(out), "\n"))
}

// Sync reindexes the catalog once and reports what changed.
func Sync(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	logger := app.cliLogger()

	if err := os.MkdirAll(app.config.Library.Path, 0o755); err != nil {
		return fmt.Errorf("create library dir: %w", err)
	}
	store, err := storage.NewFS(app.config.Library.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	db, err := library.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init library: %w", err)
	}
	defer db.Close()

	stats, err := library.Sync(ctx, db, store, logger)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	fmt.Fprintf(app.out, "indexed %d, removed %d, failed %d\n", stats.Indexed, stats.Removed, stats.Failed)
	return nil
}

// MCP serves the shell and catalog tools over stdio. The catalog watcher
// runs alongside so records edited on disk stay visible.
func MCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	// stdout carries the protocol; logs go to stderr only.
	logger := app.cliLogger()
	rt, err := app.open(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := library.Watch(ctx, rt.db, rt.store, logger, nil); err != nil {
			logger.Error("catalog watcher stopped", slog.String("error", err.Error()))
		}
	}()

	onChange := func(cmd string) {
		logger.Info("mcp changed catalog", slog.String("command", cmd))
	}
	return mcpserver.New(rt.fs, rt.svc, onChange).ServeStdio()
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + p[1:]
		}
	}
	return p
}
