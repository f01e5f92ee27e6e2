// fftransform/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fftransform/api"
	"fftransform/config"
	"fftransform/ffmpeg"
	"fftransform/logging"
	"fftransform/task"
	"fftransform/transform"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		logger := logging.WithComponent("main")
		logger.Fatal().Err(err).Msg("fftransform stopped")
	}
}

// run starts the server and blocks until ctx is done or the listener fails.
// Everything it creates is torn down before it returns.
func run(ctx context.Context) error {
	logger := logging.WithComponent("main")

	// 1. Load configuration, with an optional .env file feeding the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read .env file: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logging.Configure(logging.Config{Level: cfg.LogLevel})
	logger = logging.WithComponent("main")
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Sanitizer and runner.
	registry := ffmpeg.NewRegistry(cfg.ExtraSafeFilters, cfg.ExtraSafeCodecs)
	sanitizer := ffmpeg.NewSanitizer(registry, cfg.Quoting)
	runner, err := ffmpeg.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("initialize ffmpeg runner: %w", err)
	}

	// 3. Per-request scopes live under one work directory.
	if cfg.WorkDir == "" {
		dir, err := os.MkdirTemp("", "fftransform_")
		if err != nil {
			return fmt.Errorf("create work directory: %w", err)
		}
		defer os.RemoveAll(dir)
		cfg.WorkDir = dir
	}
	logger.Info().Str(logging.FieldPath, cfg.WorkDir).Msg("using work directory")

	checker := ffmpeg.NewResourceChecker(cfg, cfg.WorkDir)
	svc := transform.NewService(cfg, sanitizer, runner, checker)

	// 4. Async task manager.
	taskManager, err := task.NewManager(cfg, svc)
	if err != nil {
		return fmt.Errorf("initialize task manager: %w", err)
	}

	// 5. Router and server.
	router := api.SetupRouter(svc, taskManager, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	taskManager.Start(ctx)

	listenErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Str("quoting", cfg.Quoting).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	// 6. Wait for interrupt signal for graceful shutdown.
	select {
	case err := <-listenErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exiting")
	return nil
}
