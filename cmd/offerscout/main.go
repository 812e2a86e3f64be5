package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/use-agent/offerscout/api"
	"github.com/use-agent/offerscout/api/handler"
	"github.com/use-agent/offerscout/cleaner"
	"github.com/use-agent/offerscout/config"
	"github.com/use-agent/offerscout/engine"
	"github.com/use-agent/offerscout/extractor"
	"github.com/use-agent/offerscout/models"
	"github.com/use-agent/offerscout/orchestrator"
	"github.com/use-agent/offerscout/relay"
	"github.com/use-agent/offerscout/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("offerscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"sources", len(cfg.Sources),
	)

	// ── 3. Engines (the browser launches only when a source needs it) ─
	engines := []engine.Engine{engine.NewHTTPEngine(cfg.HTTP, cfg.Browser)}
	var tabs handler.TabStats
	if needsBrowser(cfg.Sources) {
		rodEngine, err := engine.NewRodEngine(cfg.Browser)
		if err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer rodEngine.Close()
		engines = append(engines, rodEngine)
		tabs = rodEngine
	}

	// ── 4. Relay sinks and bus ──────────────────────────────────────
	var sinks []relay.Sink
	if cfg.Relay.RedisAddr != "" {
		rs := relay.NewRedisSink(cfg.Relay.RedisAddr, cfg.Relay.RedisPassword, cfg.Relay.RedisDB,
			cfg.Relay.RedisStream, cfg.Relay.RedisMaxLen)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rs.Ping(pingCtx); err != nil {
			slog.Warn("redis relay unreachable, continuing", "addr", cfg.Relay.RedisAddr, "error", err)
		}
		cancel()
		defer rs.Close()
		sinks = append(sinks, rs)
	}
	if cfg.Relay.WebhookURL != "" {
		sinks = append(sinks, relay.NewWebhookSink(cfg.Relay.WebhookURL, cfg.Relay.WebhookSecret))
	}
	bus := relay.NewBus(cfg.Relay.BusBuffer, sinks...)
	slog.Info("relay ready", "sinks", len(sinks))

	// ── 5. Driver and orchestrator ──────────────────────────────────
	ex := extractor.New(cleaner.NewSummarizer(0))
	drv := scraper.NewDriver(engine.NewRegistry(engines...), ex, bus, cfg.Driver)
	orch := orchestrator.New(drv, cfg.Sources, cfg.Driver.QueryTimeout)

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(cfg, orch, bus, tabs, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// A query in flight may still be waiting on its watchdogs.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Driver.SearchTimeout+cfg.Driver.DetailTimeout)
	defer cancel()

	// Open SSE streams never finish on their own; closing the bus ends them.
	if err := bus.Close(ctx); err != nil {
		slog.Warn("relay did not drain", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("offerscout stopped")
}

func needsBrowser(sources []models.Source) bool {
	for i := range sources {
		if sources[i].EngineName() == models.EngineBrowser {
			return true
		}
	}
	return false
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
