// Package app wires the pixlift components together and manages their
// lifecycle: storage, ledger, tool registry, HTTP transport, graceful
// shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	httpapi "github.com/pixlift/pixlift/internal/api/http"
	"github.com/pixlift/pixlift/internal/config"
	"github.com/pixlift/pixlift/internal/imageproc"
	"github.com/pixlift/pixlift/internal/keys"
	"github.com/pixlift/pixlift/internal/ledger"
	"github.com/pixlift/pixlift/internal/observability"
	"github.com/pixlift/pixlift/internal/server"
	"github.com/pixlift/pixlift/internal/service"
	"github.com/pixlift/pixlift/internal/storage"
	"github.com/pixlift/pixlift/internal/tools"
)

// App manages the pixlift service lifecycle.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	store    storage.ObjectStore
	led      ledger.Ledger
	stats    *observability.UploadStats
	svc      *service.Service
	registry *tools.Registry

	httpServer *http.Server
	shutdown   *server.ShutdownManager

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration. The configuration is
// resolved and validated here so callers can pass it straight from Load.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg: cfg,
		log: log,
	}, nil
}

// Start initializes shared resources and starts the HTTP server.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize resources: %w", err)
	}

	if err := a.startHTTP(); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	a.log.Info().
		Str("storage", a.cfg.Storage.Type).
		Str("addr", a.cfg.HTTP.Addr).
		Msg("pixlift started")
	return nil
}

// initResources builds the object store, ledger, service, and tool registry.
func (a *App) initResources(ctx context.Context) error {
	var err error

	switch a.cfg.Storage.Type {
	case "local":
		a.store, err = storage.NewLocalStore(a.cfg.Storage.Path, a.cfg.Storage.S3.Bucket)
		if err != nil {
			return fmt.Errorf("failed to initialize local store: %w", err)
		}
		a.log.Info().Str("path", a.cfg.Storage.Path).Msg("local store initialized")
	case "s3":
		s3cfg := storage.S3Config{
			Region:       a.cfg.Storage.S3.Region,
			Endpoint:     a.cfg.Storage.S3.Endpoint,
			UsePathStyle: a.cfg.Storage.S3.UsePathStyle,
		}
		a.store, err = storage.NewS3Store(ctx, a.cfg.Storage.S3.Bucket, s3cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize s3 store: %w", err)
		}
		a.log.Info().
			Str("bucket", a.cfg.Storage.S3.Bucket).
			Str("region", a.cfg.Storage.S3.Region).
			Msg("s3 store initialized")
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}

	// A failing ping is worth knowing about at startup, but not fatal:
	// credentials or the bucket may come up after the service does.
	if err := a.store.Ping(ctx); err != nil {
		a.log.Warn().Err(err).Msg("storage unreachable at startup")
	}

	a.stats = observability.NewUploadStats()

	if a.cfg.Ledger.Enabled {
		led, err := ledger.Open(a.cfg.Ledger.Path)
		if err != nil {
			return fmt.Errorf("failed to open ledger: %w", err)
		}
		a.led = led
		a.log.Info().Str("path", a.cfg.Ledger.Path).Msg("upload ledger opened")
	}

	optimizer := imageproc.NewOptimizer(
		imageproc.WithBounds(a.cfg.Optimize.MaxWidth, a.cfg.Optimize.MaxHeight))
	a.svc = service.New(
		a.store,
		optimizer,
		keys.NewGenerator(),
		a.stats,
		a.led,
		a.log,
		service.WithDefaultQuality(a.cfg.Optimize.Quality),
	)

	a.registry = tools.NewRegistry()
	if err := tools.RegisterUploadTools(a.registry, a.svc); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	a.log.Info().Int("tools", len(a.registry.List())).Msg("tool registry ready")

	a.shutdown = server.NewShutdownManager(server.ShutdownConfig{}, a.log)
	if a.led != nil {
		a.shutdown.RegisterCloser(a.led)
	}

	return nil
}

// startHTTP configures the mux and starts the HTTP listener.
func (a *App) startHTTP() error {
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.DefaultMiddleware(a.log),
	)

	mux := http.NewServeMux()
	mux.Handle("/v1/tools", middleware(httpapi.NewToolsHandler(a.registry)))
	mux.Handle("/v1/tools/call", middleware(httpapi.NewToolCallHandler(a.registry)))
	mux.Handle("/health", httpapi.NewHealthHandler(service.Name, a.store))

	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	graceful := server.NewGracefulHTTPServer(a.httpServer, a.shutdown)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.log.Info().Str("addr", a.cfg.HTTP.Addr).Msg("HTTP server listening")
		if err := graceful.ListenAndServe(); err != nil {
			a.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Run starts the app and blocks until a shutdown signal arrives.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	return a.shutdown.ListenForSignals(ctx)
}

// Stop initiates graceful shutdown and waits for the HTTP server to exit.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	var err error
	if a.shutdown != nil {
		err = a.shutdown.Shutdown(ctx, "stop requested")
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	return err
}

// Service exposes the underlying service, mainly for tests and the CLI.
func (a *App) Service() *service.Service {
	return a.svc
}

// cleanup releases resources after a failed start.
func (a *App) cleanup() {
	if a.led != nil {
		if err := a.led.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to close ledger during cleanup")
		}
		a.led = nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}
