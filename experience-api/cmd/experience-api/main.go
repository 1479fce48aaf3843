package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/experiences/experience-api/internal/api"
	"github.com/Checker-Finance/experiences/experience-api/internal/bootstrap"
	"github.com/Checker-Finance/experiences/experience-api/pkg/config"
	"github.com/Checker-Finance/experiences/internal/jobs"
	"github.com/Checker-Finance/experiences/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [experience-api]...")

	// --- Catalog, caches, providers, aggregator ---
	app, err := bootstrap.Build(ctx, cfg, logger.L(), bootstrap.Options{})
	if err != nil {
		logg.Fatalw("failed to bootstrap", "error", err)
	}

	// --- Cache warmer ---
	var warmer *jobs.CacheWarmer
	if cfg.WarmInterval > 0 {
		warmer = jobs.NewCacheWarmer(logger.Named("jobs"), app.Aggregator, cfg.WarmInterval, cfg.DefaultProviderTimeout*2)
		go warmer.Start(ctx)
	}

	// --- Fiber HTTP Server ---
	server := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	})
	handler := api.NewExperienceHandler(logger.Named("api"), app.Aggregator, cfg.APIDefaultLimit)
	api.RegisterRoutes(server, handler, app.Checks)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := server.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[experience-api] running",
		"env", cfg.Env,
		"sources", app.Registry.Names(),
		"catalog", cfg.CatalogBackend,
		"cache", cfg.CacheBackend,
		"events", cfg.EventsBackend,
		"warm_interval", cfg.WarmInterval)

	<-ctx.Done()
	logg.Info("shutting down [experience-api]...")

	if warmer != nil {
		warmer.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	app.Close()
}
