package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "PUBLIC_BASE_URL", "TEMP_DIR", "PUBLISH_DIR", "KEEP_SCRATCH",
		"S3_BUCKET", "S3_REGION", "S3_KEY_PREFIX", "FETCH_TIMEOUT", "FFMPEG_PATH",
		"FFPROBE_PATH", "VIDEO_WIDTH", "VIDEO_HEIGHT", "X264_PRESET", "X264_CRF", "ASYNC_JOBS", "JOB_HISTORY",
		"MAX_AUDIO_SEC", "JOB_TIMEOUT", "LOG_FORMAT", "LOG_LEVEL",
	} {
		unsetEnv(t, key)
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, "/tmp/slideshow", cfg.TempDir)
	assert.Equal(t, "/tmp/slideshow/public", cfg.PublishDir)
	assert.False(t, cfg.KeepScratch)
	assert.Equal(t, "videos/", cfg.S3KeyPrefix)
	assert.Equal(t, 60*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
	assert.Equal(t, "ffprobe", cfg.FFprobePath)
	assert.Equal(t, 1280, cfg.VideoWidth)
	assert.Equal(t, 720, cfg.VideoHeight)
	assert.Equal(t, "fast", cfg.X264Preset)
	assert.Equal(t, 23, cfg.X264CRF)
	assert.Zero(t, cfg.MaxAudioSec)
	assert.Equal(t, 15*time.Minute, cfg.JobTimeout)
	assert.True(t, cfg.AsyncJobs)
	assert.Equal(t, 1000, cfg.JobHistory)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.S3Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("ASYNC_JOBS", "false")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:4566")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("VIDEO_WIDTH", "1920")
	t.Setenv("VIDEO_HEIGHT", "1080")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("JOB_TIMEOUT", "2m")
	t.Setenv("MAX_AUDIO_SEC", "300.5")
	t.Setenv("KEEP_SCRATCH", "true")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "http://localhost:4566", cfg.S3Endpoint)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, 1920, cfg.VideoWidth)
	assert.Equal(t, 1080, cfg.VideoHeight)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2*time.Minute, cfg.JobTimeout)
	assert.InDelta(t, 300.5, cfg.MaxAudioSec, 1e-9)
	assert.True(t, cfg.KeepScratch)
	assert.False(t, cfg.AsyncJobs)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.S3Enabled())
}

func TestLoad_EnvFile(t *testing.T) {
	unsetEnv(t, "VIDEO_WIDTH")
	unsetEnv(t, "X264_PRESET")
	t.Setenv("X264_CRF", "18")

	path := writeEnvFile(t, "VIDEO_WIDTH=640\nX264_PRESET=veryfast\nX264_CRF=30\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 640, cfg.VideoWidth)
	assert.Equal(t, "veryfast", cfg.X264Preset)
	// Real environment wins over the file.
	assert.Equal(t, 18, cfg.X264CRF)
}

func TestLoad_MalformedEnvFile(t *testing.T) {
	path := writeEnvFile(t, "BAD-KEY=1\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"PORT":          "not-a-number",
		"FETCH_TIMEOUT": "soon",
		"KEEP_SCRATCH":  "maybe",
		"MAX_AUDIO_SEC": "long",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)

			// go-envconfig returns an error when parsing fails
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
		})
	}
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{VideoWidth: 1280, VideoHeight: 720, X264CRF: 23}
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("S3 fully configured", func(t *testing.T) {
		cfg := valid()
		cfg.S3Bucket, cfg.S3Region = "bucket", "region"
		assert.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"bucket without region", func(c *Config) { c.S3Bucket = "bucket" }, ErrS3Incomplete},
		{"region without bucket", func(c *Config) { c.S3Region = "region" }, ErrS3Incomplete},
		{"zero width", func(c *Config) { c.VideoWidth = 0 }, ErrInvalidDimensions},
		{"odd height", func(c *Config) { c.VideoHeight = 721 }, ErrInvalidDimensions},
		{"negative CRF", func(c *Config) { c.X264CRF = -1 }, ErrInvalidCRF},
		{"CRF too high", func(c *Config) { c.X264CRF = 52 }, ErrInvalidCRF},
		{"negative max audio", func(c *Config) { c.MaxAudioSec = -1 }, ErrInvalidMaxAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:               8080,
		TempDir:            "/tmp/test",
		S3Bucket:           "bucket",
		S3Region:           "region",
		AWSAccessKeyID:     "AKIAEXAMPLE",
		AWSSecretAccessKey: "secret-key",
		LogFormat:          "json",
		LogLevel:           "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "bucket")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "AKIAEXAMPLE")
	assert.NotContains(t, str, "secret-key")
	assert.Contains(t, str, "****")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelInfo))
	assert.False(t, logger.Enabled(t.Context(), slog.LevelDebug))

	// Capture output to verify it's JSON
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	testLogger := slog.New(handler)
	testLogger.Info("test message")

	// Should have JSON structure
	assert.Contains(t, buf.String(), `"msg"`)
	assert.Contains(t, buf.String(), "test message")
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}
