package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/scoutstat/internal/adapters/http/api"
	"github.com/okian/scoutstat/internal/adapters/http/site"
	"github.com/okian/scoutstat/internal/adapters/http/swagger"
	"github.com/okian/scoutstat/internal/adapters/repository"
	app "github.com/okian/scoutstat/internal/app"
	"github.com/okian/scoutstat/internal/config"
	"github.com/okian/scoutstat/internal/importer"
	"github.com/okian/scoutstat/pkg/logger"
	"github.com/okian/scoutstat/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()
	_ = logger.Sync()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	loggerInstance := logger.Get()

	// Load configuration (defaults -> optional file -> .env -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg, loggerInstance)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			loggerInstance.Error(ctx, "closing store", logger.Error(err))
		}
	}()

	if cfg.ImportDir != "" {
		if err := importDir(ctx, store, cfg.ImportDir, loggerInstance); err != nil {
			return err
		}
	}

	svc, err := app.New(store,
		app.WithLogger(loggerInstance.Named("service")),
		app.WithSeason(cfg.Season),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.OPRQueueSize),
		app.WithOPRTimeout(cfg.OPRTimeout()),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc, loggerInstance),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	loggerInstance.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (*repository.Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	store, err := repository.Open(ctx, cfg.DBPath,
		repository.WithAutoMigrate(cfg.AutoMigrate),
		repository.WithLocation(loc),
		repository.WithLogger(log.Named("repository")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func importDir(ctx context.Context, store *repository.Store, dir string, log logger.Logger) error {
	im, err := importer.New(store, importer.WithLogger(log.Named("importer")))
	if err != nil {
		return err
	}
	sum, err := im.ImportDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", dir, err)
	}
	log.Info(ctx, "startup import finished",
		logger.Int("files", sum.Files),
		logger.Int("matches", sum.Matches),
		logger.Int("scores", sum.Scores))
	return nil
}

// newMux registers the dashboard, docs and business API routes.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, svc,
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithLogger(log.Named("http")),
	)
	apiServer.Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok && stats["started"] == true {
		metrics.UpdateWorkerActiveCount(workerCount)
	}
}
