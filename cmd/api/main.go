package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	httpapi "videoworker/internal/http"
	"videoworker/internal/http/handlers"
	"videoworker/internal/infra"
	"videoworker/internal/job"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	jobs, err := job.NewFromConfig(cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure job handler")
	}

	app := handlers.NewApp(jobs, cfg.MaxConcurrentJobs, &logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("engine", cfg.EngineHTTPURL()).
			Int("max_concurrent_jobs", cfg.MaxConcurrentJobs).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
