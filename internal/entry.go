// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/noteintel/internal/api"
	"github.com/starford/noteintel/internal/index"
	"github.com/starford/noteintel/internal/mcpserver"
	"github.com/starford/noteintel/internal/noteservice"
	"github.com/starford/noteintel/internal/search"
	"github.com/starford/noteintel/internal/sse"
	"github.com/starford/noteintel/internal/storage"
	"github.com/starford/noteintel/internal/validator"
	"github.com/starford/noteintel/internal/vector"
)

// runtime holds the components shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	db      *index.DB
	indexer *index.Indexer
	svc     *noteservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger initializes the structured JSON logger and makes it the default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func newEmbedder(cfg EmbeddingConfig) vector.Embedder {
	if cfg.Provider == EmbeddingOllama {
		return vector.NewOllamaEmbedder(cfg.URL, cfg.Model, cfg.Timeout)
	}
	return vector.NewHashEmbedder(cfg.Dim)
}

// open builds storage, index and components. The caller must close the
// returned runtime.
func (a *application) open(logger *slog.Logger, svcOpts ...noteservice.Option) (*runtime, error) {
	cfg := a.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("embedding", cfg.Embedding.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	vault, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	embedder := newEmbedder(cfg.Embedding)
	ix := index.NewIndexer(db, vault,
		index.WithEmbedder(embedder),
		index.WithDefaultUser(cfg.Vault.DefaultUser),
		index.WithLogger(logger))

	engineOpts := []search.EngineOption{
		search.WithConfig(cfg.Search.EngineConfig()),
		search.WithLogger(logger),
	}
	if cfg.Search.History {
		engineOpts = append(engineOpts, search.WithHistory(db))
	}
	engine := search.NewEngine(vector.NewIndex(embedder, db), db, engineOpts...)

	opts := append([]noteservice.Option{
		noteservice.WithIndexer(ix),
		noteservice.WithLogger(logger),
		noteservice.WithDefaults(noteservice.Defaults{
			MinClusterSize: cfg.Graph.MinClusterSize,
			TopN:           cfg.Graph.TopN,
			MaxSuggestions: cfg.Suggest.MaxSuggestions,
			MinSimilarity:  cfg.Suggest.MinSimilarity,
		}),
	}, svcOpts...)

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		indexer: ix,
		svc:     noteservice.NewService(db, engine, opts...),
	}, nil
}

func (rt *runtime) close() {
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close index failed", slog.String("error", err.Error()))
	}
}

// initialSync indexes the vault and checks the graph store. Failures are
// logged; the service still starts on whatever the index holds.
func (rt *runtime) initialSync(ctx context.Context) {
	if _, err := rt.svc.Sync(ctx); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	if err := rt.svc.Graph().Initialize(ctx); err != nil {
		rt.logger.Warn("graph initialization failed", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server, the SSE broker and the vault watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker := sse.NewBroker(cfg.Graph.EventThrottle)
	defer broker.Close()

	rt, err := app.open(logger, noteservice.WithRepairHook(func(r *validator.RepairReport) {
		broker.PublishLinksRepaired(r)
	}))
	if err != nil {
		return err
	}
	defer rt.close()
	rt.initialSync(ctx)

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		report := rt.svc.Ready(req.Context())
		status := http.StatusOK
		if report["status"] != "healthy" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(report)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Vault.Watch {
		g.Go(func() error {
			return rt.indexer.Watch(gCtx, cfg.Vault.Path, broker.PublishNoteEvent)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down on signal or on the first failing goroutine.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP syncs the vault and serves MCP tools on stdin/stdout. Logs go to
// stderr unless WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.newLogger()

	rt, err := app.open(logger)
	if err != nil {
		return err
	}
	defer rt.close()
	rt.initialSync(ctx)

	return mcpserver.New(rt.svc, app.version).ServeStdio()
}

// RunSync indexes the vault once and writes the stats as JSON to out.
func RunSync(ctx context.Context, out io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.open(app.newLogger())
	if err != nil {
		return err
	}
	defer rt.close()

	stats, err := rt.svc.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return writeIndented(out, stats)
}

// ErrUnhealthy is returned by RunValidate when issues remain.
var ErrUnhealthy = errors.New("link validation found issues")

// RunValidate syncs the vault, validates every link and writes the result as
// JSON to out. With repair set, broken and duplicate links are removed and
// the repair report is written as well. It returns ErrUnhealthy when the
// final state still has issues.
func RunValidate(ctx context.Context, out io.Writer, repair bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.open(app.newLogger())
	if err != nil {
		return err
	}
	defer rt.close()
	rt.initialSync(ctx)

	if repair {
		report, err := rt.svc.RepairLinks(ctx)
		if err != nil {
			return fmt.Errorf("repair: %w", err)
		}
		if err := writeIndented(out, map[string]any{"repair": report}); err != nil {
			return err
		}
	}

	result, err := rt.svc.ValidateLinks(ctx)
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if err := writeIndented(out, map[string]any{"validation": result, "healthy": result.IsHealthy()}); err != nil {
		return err
	}
	if !result.IsHealthy() {
		return ErrUnhealthy
	}
	return nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
