// Package config provides configuration loading from environment variables
// and an optional .env file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrS3Incomplete is returned when only one of S3_BUCKET and S3_REGION is set.
	ErrS3Incomplete = errors.New("config: S3_BUCKET and S3_REGION must be set together")
	// ErrInvalidDimensions is returned when VIDEO_WIDTH or VIDEO_HEIGHT is not a positive even number.
	ErrInvalidDimensions = errors.New("config: VIDEO_WIDTH and VIDEO_HEIGHT must be positive even numbers")
	// ErrInvalidCRF is returned when X264_CRF is outside 0-51.
	ErrInvalidCRF = errors.New("config: X264_CRF must be between 0 and 51")
	// ErrInvalidMaxAudio is returned when MAX_AUDIO_SEC is negative.
	ErrInvalidMaxAudio = errors.New("config: MAX_AUDIO_SEC must not be negative")
)

// DefaultEnvFile is the dotenv file Load reads when no file is given.
const DefaultEnvFile = ".env"

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port          int    `env:"PORT, default=8080" json:"port"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL, default=http://localhost:8080" json:"public_base_url"`

	// Storage settings
	TempDir     string `env:"TEMP_DIR, default=/tmp/slideshow" json:"temp_dir"`
	PublishDir  string `env:"PUBLISH_DIR, default=/tmp/slideshow/public" json:"publish_dir"`
	KeepScratch bool   `env:"KEEP_SCRATCH, default=false" json:"keep_scratch"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3KeyPrefix        string `env:"S3_KEY_PREFIX, default=videos/" json:"s3_key_prefix"`
	S3PublicBaseURL    string `env:"S3_PUBLIC_BASE_URL" json:"s3_public_base_url,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Fetch settings
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT, default=60s" json:"fetch_timeout"`
	FetchUserAgent string        `env:"FETCH_USER_AGENT, default=slideshow-api/1.0" json:"fetch_user_agent"`

	// Rendering settings
	FFmpegPath  string  `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string  `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`
	VideoWidth  int     `env:"VIDEO_WIDTH, default=1280" json:"video_width"`
	VideoHeight int     `env:"VIDEO_HEIGHT, default=720" json:"video_height"`
	X264Preset  string  `env:"X264_PRESET, default=fast" json:"x264_preset"`
	X264CRF     int     `env:"X264_CRF, default=23" json:"x264_crf"`
	MaxAudioSec float64 `env:"MAX_AUDIO_SEC, default=0" json:"max_audio_sec"`

	// Job settings
	JobTimeout time.Duration `env:"JOB_TIMEOUT, default=15m" json:"job_timeout"`
	// AsyncJobs runs POST /jobs in the background; when false the job is only queued.
	AsyncJobs  bool          `env:"ASYNC_JOBS, default=true" json:"async_jobs"`
	// JobHistory bounds the jobs kept in memory once finished; 0 keeps all.
	JobHistory int           `env:"JOB_HISTORY, default=1000" json:"job_history"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// Variables from the given dotenv files (DefaultEnvFile when none) are
// loaded first; they never override variables already set, and missing
// files are skipped.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if (c.S3Bucket == "") != (c.S3Region == "") {
		return ErrS3Incomplete
	}
	if c.VideoWidth <= 0 || c.VideoHeight <= 0 || c.VideoWidth%2 != 0 || c.VideoHeight%2 != 0 {
		return ErrInvalidDimensions
	}
	if c.X264CRF < 0 || c.X264CRF > 51 {
		return ErrInvalidCRF
	}
	if c.MaxAudioSec < 0 {
		return ErrInvalidMaxAudio
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, PublicBaseURL: %s, TempDir: %s, PublishDir: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, AWSAccessKeyID: %s, AWSSecretAccessKey: %s, VideoWidth: %d, VideoHeight: %d, X264Preset: %s, X264CRF: %d, FetchTimeout: %s, JobTimeout: %s, MaxAudioSec: %g, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.PublicBaseURL,
		c.TempDir,
		c.PublishDir,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		mask(c.AWSAccessKeyID),
		mask(c.AWSSecretAccessKey),
		c.VideoWidth,
		c.VideoHeight,
		c.X264Preset,
		c.X264CRF,
		c.FetchTimeout,
		c.JobTimeout,
		c.MaxAudioSec,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
