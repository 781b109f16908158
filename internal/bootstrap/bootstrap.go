// Package bootstrap provides dependency initialization for the slideshow API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"github.com/maauso/slideshow-api/internal/audio"
	"github.com/maauso/slideshow-api/internal/config"
	"github.com/maauso/slideshow-api/internal/fetch"
	"github.com/maauso/slideshow-api/internal/job"
	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	VideoService *job.ProcessVideoService
	// VideosDir is the directory to serve under /videos/, or empty when
	// videos are published to S3.
	VideosDir string
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize scratch space
	scratch, err := storage.NewScratch(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create scratch: %w", err)
	}

	// Initialize publisher
	publisher, videosDir, err := initPublisher(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize fetcher, prober and renderer
	fetcher := fetch.NewHTTPFetcher(
		fetch.WithTimeout(cfg.FetchTimeout),
		fetch.WithUserAgent(cfg.FetchUserAgent),
	)
	prober := audio.NewFFprobeProber(cfg.FFprobePath, cfg.FFmpegPath)
	renderer := media.NewFFmpegRenderer(cfg.FFmpegPath)

	// Initialize job repository
	repo := job.NewMemoryRepository(job.WithHistoryLimit(cfg.JobHistory))

	renderOpts := media.RenderOpts{
		Width:  cfg.VideoWidth,
		Height: cfg.VideoHeight,
		Preset: cfg.X264Preset,
		CRF:    lo.ToPtr(cfg.X264CRF),
	}

	// Initialize ProcessVideoService
	svc := job.NewProcessVideoService(
		repo,
		fetcher,
		prober,
		renderer,
		publisher,
		scratch,
		job.WithLogger(logger),
		job.WithRenderOpts(renderOpts),
		job.WithMaxAudioDuration(cfg.MaxAudioSec),
		job.WithKeepScratch(cfg.KeepScratch),
		job.WithJobTimeout(cfg.JobTimeout),
	)

	return &Dependencies{
		VideoService: svc,
		VideosDir:    videosDir,
	}, nil
}

// initPublisher creates the S3 publisher when S3 is configured and a local
// publisher otherwise. It also returns the directory the server must expose
// for local publishing.
func initPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Publisher, string, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			KeyPrefix:       cfg.S3KeyPrefix,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		pub, err := storage.NewS3Publisher(ctx, s3Cfg)
		if err != nil {
			return nil, "", fmt.Errorf("create S3 publisher: %w", err)
		}
		logger.Info("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("key_prefix", cfg.S3KeyPrefix),
		)
		return pub, "", nil
	}

	pub, err := storage.NewLocalPublisher(cfg.PublishDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("create local publisher: %w", err)
	}
	logger.Info("local publishing configured",
		slog.String("publish_dir", pub.Dir()),
		slog.String("public_base_url", cfg.PublicBaseURL),
	)
	return pub, pub.Dir(), nil
}
