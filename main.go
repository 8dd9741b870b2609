package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tmabaso28/pnpscraper/config"
	"tmabaso28/pnpscraper/internal/render"
	"tmabaso28/pnpscraper/internal/scraper"
	"tmabaso28/pnpscraper/internal/sink"
	"tmabaso28/pnpscraper/internal/window"
	"tmabaso28/pnpscraper/logger"
	"tmabaso28/pnpscraper/server"
	"tmabaso28/pnpscraper/services/cache"
	"tmabaso28/pnpscraper/services/jobs"
	"tmabaso28/pnpscraper/services/publisher"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	win := window.CrawlWindow{
		StartHour:   cfg.WindowStartHour,
		StartMinute: cfg.WindowStartMinute,
		EndHour:     cfg.WindowEndHour,
		EndMinute:   cfg.WindowEndMinute,
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("window_utc", win.LabelUTC()).
		Str("listen_addr", cfg.ListenAddr).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
	logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)

	var pub publisher.Publisher
	if cfg.PublishEnabled {
		pub = publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		defer pub.Close()
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	renderer := render.NewClient(render.Options{
		ChromeAddr:    cfg.ChromeAddr,
		RequestDelay:  cfg.RequestDelay,
		RenderTimeout: cfg.RenderTimeout,
		RenderSettle:  cfg.RenderSettle,
		PageCacheTTL:  cfg.PageCacheTTL,
		PageCacheSize: cfg.PageCacheSize,
	}, cacheService)

	if err := renderer.CheckConnection(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.ChromeAddr).Msg("Rendering service unreachable, will fall back to direct fetch")
	}

	policy := scraper.DefaultPolicy()
	policy.ProductsPerCategory = cfg.ProductsPerCategory
	policy.MinValidRecords = cfg.MinValidRecords
	policy.MaxPages = cfg.MaxPagesPerCategory

	metrics := scraper.NewMetrics()
	targets := scraper.DefaultTargets(cfg.BaseURL)

	runCrawl := func(runCtx context.Context) (*scraper.RunResult, error) {
		orchestrator := scraper.NewOrchestrator(
			renderer,
			sink.NewJSONSink(cfg.DataFile),
			policy,
			win,
		).WithMetrics(metrics)
		if pub != nil {
			orchestrator = orchestrator.WithPublisher(pub)
		}
		return orchestrator.Run(runCtx, targets)
	}

	srv := server.New(win, jobs.NewMemoryStore(), runCrawl, cfg.DataFile).
		WithMetricsHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverDone := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Control API listening")
		serverDone <- httpServer.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server exited with error")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}
