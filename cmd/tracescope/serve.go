package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/TraceScope/internal/adapter/fswatch"
	tshttp "github.com/Strob0t/TraceScope/internal/adapter/http"
	tsnats "github.com/Strob0t/TraceScope/internal/adapter/nats"
	"github.com/Strob0t/TraceScope/internal/adapter/natskv"
	tsotel "github.com/Strob0t/TraceScope/internal/adapter/otel"
	"github.com/Strob0t/TraceScope/internal/adapter/ristretto"
	"github.com/Strob0t/TraceScope/internal/adapter/tiered"
	"github.com/Strob0t/TraceScope/internal/adapter/ws"
	"github.com/Strob0t/TraceScope/internal/config"
	"github.com/Strob0t/TraceScope/internal/domain/filter"
	"github.com/Strob0t/TraceScope/internal/logger"
	"github.com/Strob0t/TraceScope/internal/middleware"
	"github.com/Strob0t/TraceScope/internal/port/cache"
	"github.com/Strob0t/TraceScope/internal/port/messagequeue"
	"github.com/Strob0t/TraceScope/internal/resilience"
	"github.com/Strob0t/TraceScope/internal/service"
)

func runServe(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closeLog := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closeLog.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"trace_file", cfg.Trace.File,
		"nats_enabled", cfg.NATS.URL != "",
		"otel_enabled", cfg.OTEL.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---

	// OpenTelemetry
	shutdownOtel, err := tsotel.Setup(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOtel(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := tsotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// Export cache
	exportCache, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer exportCache.Close()

	// NATS (optional)
	var queue messagequeue.Publisher
	var sessionCache cache.Cache = exportCache
	if cfg.NATS.URL != "" {
		breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
		pub, err := tsnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Subject, breaker)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = pub.Close() }()
		queue = pub

		if cfg.NATS.ExportBucket != "" {
			kv, err := natskv.Bucket(ctx, pub.JetStream(), cfg.NATS.ExportBucket, cfg.Cache.TTL)
			if err != nil {
				return fmt.Errorf("nats: %w", err)
			}
			sessionCache = tiered.New(exportCache, natskv.New(kv), cfg.Cache.TTL)
			slog.Info("export mirror enabled", "bucket", cfg.NATS.ExportBucket)
		}
	}

	// --- Services ---

	settings, err := startupFilters(cfg.Filters)
	if err != nil {
		return err
	}

	hub := ws.NewHub(cfg.Server.CORSOrigin)
	session := service.NewSessionService(hub, settings, service.SessionConfig{
		SlowThresholdMs: cfg.Trace.SlowThresholdMs,
		CacheTTL:        cfg.Cache.TTL,
		SubjectPrefix:   cfg.NATS.Subject,
	})
	session.SetMetrics(metrics)
	session.SetCache(sessionCache)
	if queue != nil {
		session.SetPublisher(queue)
	}

	if cfg.Trace.File != "" {
		if err := loadStartupTrace(ctx, session, cfg.Trace); err != nil {
			return err
		}
	}
	if cfg.Trace.Watch {
		watcher, err := fswatch.New(cfg.Trace.File, func(ctx context.Context, data []byte, source string) error {
			_, err := session.Load(ctx, data, source)
			return err
		})
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		defer func() { _ = watcher.Close() }()
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("trace watcher stopped", "error", err)
			}
		}()
	}

	// --- HTTP ---

	handlers := &tshttp.Handlers{
		Session:        session,
		Queue:          queue,
		Viewers:        hub,
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		Version:        version,
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(tshttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(tshttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tshttp.SecurityHeaders)
	if cfg.OTEL.Enabled {
		r.Use(tsotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	}

	// WebSocket endpoint, outside the request timeout
	r.Get("/ws", hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		tshttp.MountRoutes(r, handlers)
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// startupFilters builds the initial filter settings: built-in groups plus the
// preset directory, or an exported settings file when one is configured.
func startupFilters(cfg config.Filters) (filter.Settings, error) {
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return filter.Settings{}, fmt.Errorf("filters file: %w", err)
		}
		settings, err := filter.ImportSettings(data)
		if err != nil {
			return filter.Settings{}, fmt.Errorf("filters file %s: %w", cfg.File, err)
		}
		slog.Info("filter settings imported", "file", cfg.File, "groups", len(settings.Groups))
		return settings, nil
	}

	settings := filter.DefaultSettings()
	settings.ApplyFilters = cfg.Apply
	presets, err := filter.LoadPresetsFromDirectory(cfg.PresetDir)
	if err != nil {
		return filter.Settings{}, fmt.Errorf("filter presets: %w", err)
	}
	if len(presets) > 0 {
		slog.Info("filter presets loaded", "dir", cfg.PresetDir, "count", len(presets))
	}
	settings = settings.Merge(presets)
	if err := settings.Validate(); err != nil {
		return filter.Settings{}, fmt.Errorf("filter presets: %w", err)
	}
	return settings, nil
}

// loadStartupTrace loads the configured trace. A malformed file is fatal
// unless the file is watched, in which case the next save may fix it.
func loadStartupTrace(ctx context.Context, session *service.SessionService, cfg config.Trace) error {
	data, err := os.ReadFile(cfg.File)
	if err != nil {
		if cfg.Watch && errors.Is(err, os.ErrNotExist) {
			slog.Warn("trace file not found yet, waiting for it", "path", cfg.File)
			return nil
		}
		return fmt.Errorf("trace file: %w", err)
	}
	if _, err := session.Load(ctx, data, filepath.Base(cfg.File)); err != nil {
		if cfg.Watch {
			slog.Warn("startup trace rejected, waiting for a valid save", "path", cfg.File, "error", err)
			return nil
		}
		return err
	}
	return nil
}
