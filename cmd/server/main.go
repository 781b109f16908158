// Package main runs the slideshow API: it turns image URLs plus an audio URL
// into a published MP4.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/slideshow-api/internal/bootstrap"
	"github.com/maauso/slideshow-api/internal/config"
	"github.com/maauso/slideshow-api/internal/server"
)

// shutdownGrace bounds both in-flight HTTP requests and background jobs
// once a stop signal arrives.
const shutdownGrace = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	publisher := "local"
	if cfg.S3Enabled() {
		publisher = "s3"
	}
	logger.Info("slideshow API configured",
		slog.String("publisher", publisher),
		slog.String("scratch", cfg.TempDir),
		slog.String("size", fmt.Sprintf("%dx%d", cfg.VideoWidth, cfg.VideoHeight)),
		slog.Bool("async_jobs", cfg.AsyncJobs),
		slog.Duration("job_timeout", cfg.JobTimeout),
	)
	logger.Debug("configuration", slog.String("config", cfg.String()))

	srv := newHTTPServer(cfg, deps, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		logger.Info("stop signal received, draining")
	}

	return shutdown(srv, deps, logger)
}

// newHTTPServer builds the HTTP server. The write timeout covers a full
// synchronous render on POST /videos.
func newHTTPServer(cfg *config.Config, deps *bootstrap.Dependencies, logger *slog.Logger) *http.Server {
	handlers := server.NewHandlers(deps.VideoService, logger, server.WithAsyncProcessing(cfg.AsyncJobs))

	routes := server.DefaultConfig()
	routes.VideosDir = deps.VideosDir

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.NewRouter(handlers, logger, routes),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.JobTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// shutdown stops accepting requests, then gives background jobs the rest
// of the grace period to record their outcome.
func shutdown(srv *http.Server, deps *bootstrap.Dependencies, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	jobsDone := make(chan struct{})
	go func() {
		deps.VideoService.Wait()
		close(jobsDone)
	}()

	select {
	case <-jobsDone:
		logger.Info("stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("background jobs still running at exit")
		return nil
	}
}
