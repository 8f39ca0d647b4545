// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/travelog/internal/api"
	"github.com/onnwee/travelog/internal/audit"
	"github.com/onnwee/travelog/internal/auth"
	"github.com/onnwee/travelog/internal/collection"
	"github.com/onnwee/travelog/internal/config"
	"github.com/onnwee/travelog/internal/diary"
	"github.com/onnwee/travelog/internal/health"
	"github.com/onnwee/travelog/internal/jobs"
	"github.com/onnwee/travelog/internal/middleware"
	"github.com/onnwee/travelog/internal/moderation"
	"github.com/onnwee/travelog/internal/storage"
	"github.com/onnwee/travelog/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "optional YAML config file (environment variables take precedence)")
	flag.Parse()

	if *help {
		fmt.Println("Travelog API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Wait for interrupt signal for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logger.Error("failed to listen", "port", cfg.Port, "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger, ln); err != nil {
		logger.Error("server failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run serves the API on ln until ctx is done, then shuts down gracefully.
// Background jobs run on a context detached from ctx and stop with the server.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, ln net.Listener) error {
	defer ln.Close()
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	tracer, err := tracing.NewProvider(tracing.Config{
		ServiceName:    "travelog-api",
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracing shutdown failed", "error", err)
		}
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storeMetrics := collection.NewMetrics()
	httpMetrics := middleware.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	if cfg.MetricsEnabled {
		if err := storeMetrics.Register(registry); err != nil {
			return fmt.Errorf("failed to register collection metrics: %w", err)
		}
		if err := httpMetrics.Register(registry); err != nil {
			return fmt.Errorf("failed to register http metrics: %w", err)
		}
		if err := jobMetrics.Register(registry); err != nil {
			return fmt.Errorf("failed to register job metrics: %w", err)
		}
	} else {
		storeMetrics, httpMetrics, jobMetrics = nil, nil, nil
	}

	store, err := storage.Open(jobCtx, cfg, logger, storeMetrics)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("storage close failed", "error", err)
		}
	}()

	diaries := diary.NewRepository(store.DB)
	auditLog := audit.NewLog(store.DB)
	moderator := moderation.NewService(diaries, auditLog, logger)

	background := []jobs.Job{{
		Type:     jobs.JobTypeAuditVerify,
		Interval: time.Hour,
		Timeout:  time.Minute,
		Run:      auditLog.Verify,
	}}

	// Rate limiting: shared across instances through Redis when configured.
	checks := store.Checks
	var rateStore middleware.RateLimitStore
	if cfg.WriteRateLimit > 0 {
		if cfg.RedisURL != "" {
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to parse REDIS_URL: %w", err)
			}
			client := redis.NewClient(opts)
			defer client.Close()
			rateStore = middleware.NewRedisRateLimitStore(client, httpMetrics)
			checks = append(checks, health.Check{Name: "rate_limit_redis", Checker: health.NewRedisChecker(client)})
		} else {
			mem := middleware.NewInMemoryRateLimitStore()
			rateStore = mem
			background = append(background, jobs.Job{
				Type:     jobs.JobTypeRateLimitCleanup,
				Interval: time.Minute,
				Run: func(context.Context) error {
					mem.Cleanup()
					return nil
				},
			})
		}
	}

	stopJobs := jobs.NewRunner(jobMetrics, logger).Start(jobCtx, background...)
	defer stopJobs()

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}

	router := api.NewRouter(api.RouterConfig{
		Diaries:    api.NewDiaryHandlers(diaries),
		Moderation: api.NewModerationHandlers(moderator, diaries, auditLog),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			Checks:         checks,
			MetricsEnabled: cfg.MetricsEnabled,
		}),
		Tokens:         auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret),
		RateLimitStore: rateStore,
		WriteLimit: middleware.RateLimitConfig{
			RequestsPerWindow: cfg.WriteRateLimit,
			WindowDuration:    time.Minute,
		},
		Metrics:        httpMetrics,
		MetricsHandler: metricsHandler,
		Version:        version,
	})

	// Apply middleware: RequestID -> CORS -> Tracing -> Logging -> HTTPMetrics
	handler := middleware.RequestID(
		middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins, AllowCredentials: true, MaxAge: 600})(
			middleware.Tracing("travelog-api")(
				middleware.Logging(logger)(
					middleware.HTTPMetrics(httpMetrics)(router),
				),
			),
		),
	)

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", ln.Addr().String(), "version", version)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
