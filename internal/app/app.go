// Package app wires every component into a runnable daemon: load config,
// build a logger, then initialize components in dependency order and
// expose Start/Stop/Run for the entrypoint.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"logscan/internal/config"
	"logscan/internal/httpapi"
	"logscan/internal/ingest"
	"logscan/internal/logfile"
	"logscan/internal/metrics"
	"logscan/internal/scan"
	"logscan/internal/tracing"
	"logscan/pkg/auth"
	"logscan/pkg/configdir"
	"logscan/pkg/replication"
	"logscan/pkg/tsdb"
)

// App coordinates the Logfile Registry, Ingestion Pipeline, Scan
// Coordinator and their collaborators for one daemon process.
type App struct {
	config *config.Config
	logger *logrus.Logger

	configDir *configdir.FileDirectory
	registry  *logfile.Registry
	store     *tsdb.Store
	repl      *replication.Map
	signer    *auth.Signer
	tracer    *tracing.Manager

	pipeline    *ingest.Pipeline
	coordinator *scan.Coordinator
	remote      *scan.RemoteAdapter

	api           *httpapi.API
	httpServer    *http.Server
	metricsServer *metrics.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// New loads configFile, builds the logger, and wires every component. It
// fails fast on a bad config or an unreachable config/storage directory
// rather than starting in a half-initialized state.
func New(configFile string) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.App.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{config: cfg, logger: logger, ctx: ctx, cancel: cancel}

	if err := app.initComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("initialize components: %w", err)
	}
	return app, nil
}

func (app *App) initComponents() error {
	cfg := app.config

	configDir, err := configdir.NewFileDirectory(cfg.ConfigDir.Root, app.logger)
	if err != nil {
		return fmt.Errorf("config directory: %w", err)
	}
	app.configDir = configDir
	app.registry = logfile.NewRegistry(configDir)

	store, err := tsdb.NewStore(cfg.Storage.DataDir, app.logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	app.store = store

	repl, err := replication.NewMap(cfg.Replication)
	if err != nil {
		return fmt.Errorf("replication map: %w", err)
	}
	app.repl = repl

	app.signer = auth.NewSigner([]byte(cfg.Auth.Secret))

	tracer, err := tracing.New(cfg.Tracing, app.logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	app.tracer = tracer

	app.remote = scan.NewRemoteAdapter(&http.Client{Timeout: 30 * time.Second}, app.logger).
		WithAuth(app.signer, auth.Session{Customer: "", IssuedAt: time.Now()})
	app.coordinator = scan.NewCoordinator(app.store, app.repl, app.remote, app.logger).WithTracer(app.tracer)
	app.pipeline = ingest.New(app.registry, app.store, app.logger).WithTracer(app.tracer)

	app.api = httpapi.New(app.registry, app.pipeline, app.store, app.coordinator, app.signer, app.logger)
	app.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Metrics.Enabled {
		app.metricsServer = metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port), app.logger)
	}

	return nil
}

// Start brings up the metrics server (if enabled) and the HTTP API
// server; the HTTP server runs in a background goroutine so Start
// returns once both are listening.
func (app *App) Start() error {
	app.logger.Info("starting logscand")

	if app.metricsServer != nil {
		app.metricsServer.Start()
	}

	go func() {
		app.logger.WithField("addr", app.httpServer.Addr).Info("starting http api server")
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.WithError(err).Error("http api server error")
		}
	}()

	app.logger.Info("logscand started")
	return nil
}

// Stop gracefully shuts down the HTTP server, flushes tracing spans, and
// closes the config directory watcher. Component errors are logged, not
// returned, so shutdown always proceeds through every stage.
func (app *App) Stop() error {
	app.logger.Info("stopping logscand")
	app.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("failed to shut down http api server")
	}

	if app.tracer != nil {
		traceCtx, traceCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer traceCancel()
		if err := app.tracer.Shutdown(traceCtx); err != nil {
			app.logger.WithError(err).Error("failed to shut down tracing manager")
		}
	}

	if app.metricsServer != nil {
		if err := app.metricsServer.Stop(); err != nil {
			app.logger.WithError(err).Error("failed to stop metrics server")
		}
	}

	if app.configDir != nil {
		app.configDir.Close()
	}

	app.logger.Info("logscand stopped")
	return nil
}

// Run starts the daemon and blocks until SIGINT/SIGTERM, then shuts down
// gracefully.
func (app *App) Run() error {
	if err := app.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	app.logger.Info("shutdown signal received")
	return app.Stop()
}
