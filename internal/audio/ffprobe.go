package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Timestamps in ffmpeg stderr: the input banner and the progress lines.
var (
	durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)
	progressRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)
)

// FFprobeProber implements Prober using the ffprobe CLI, with a decode pass
// through ffmpeg when the container carries no duration metadata.
type FFprobeProber struct {
	ffprobePath string
	ffmpegPath  string
}

// NewFFprobeProber creates a new FFprobeProber.
// Empty paths default to "ffprobe" and "ffmpeg" (found via PATH).
func NewFFprobeProber(ffprobePath, ffmpegPath string) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFprobeProber{ffprobePath: ffprobePath, ffmpegPath: ffmpegPath}
}

// Duration implements Prober.Duration.
func (p *FFprobeProber) Duration(ctx context.Context, path string) (float64, error) {
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}

	duration, err := p.probeFormatDuration(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: ffprobe cancelled: %w", ErrDecodeFailed, ctx.Err())
		}
		// Raw streams often report N/A; decoding gives the real length.
		duration, err = p.decodeDuration(ctx, path)
		if err != nil {
			return 0, err
		}
	}

	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return 0, fmt.Errorf("%w: non-positive duration %v for %s", ErrDecodeFailed, duration, path)
	}

	return duration, nil
}

// probeFormatDuration reads the container duration with ffprobe.
func (p *FFprobeProber) probeFormatDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w, stderr: %s", err, stderr.String())
	}

	return parseProbeOutput(stdout.String())
}

// decodeDuration decodes the whole file with ffmpeg and reads the decoded
// length from its final progress line.
func (p *FFprobeProber) decodeDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-hide_banner",
		"-nostdin",
		"-stats",
		"-i", path,
		"-vn",
		"-f", "null", "-",
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return 0, fmt.Errorf("%w: ffmpeg cancelled: %w", ErrDecodeFailed, ctx.Err())
	}
	if runErr != nil {
		return 0, fmt.Errorf("%w: ffmpeg: %w, stderr: %s", ErrDecodeFailed, runErr, stderr.String())
	}

	duration, err := parseDecodedDuration(stderr.String())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecodeFailed, err)
	}
	return duration, nil
}

// parseProbeOutput parses the single value printed by
// ffprobe -show_entries format=duration.
func parseProbeOutput(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("no duration reported")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return d, nil
}

// parseDecodedDuration returns the last "time=HH:MM:SS.xx" progress value of
// an ffmpeg decode pass, falling back to the input "Duration:" banner.
func parseDecodedDuration(out string) (float64, error) {
	if all := progressRe.FindAllStringSubmatch(out, -1); len(all) > 0 {
		return clockSeconds(all[len(all)-1]), nil
	}
	if m := durationRe.FindStringSubmatch(out); m != nil {
		return clockSeconds(m), nil
	}
	return 0, fmt.Errorf("could not parse duration from ffmpeg output")
}

// clockSeconds converts the hours, minutes, seconds and fraction groups of
// a timestamp match to seconds.
func clockSeconds(m []string) float64 {
	hours, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	seconds, _ := strconv.ParseFloat(m[3], 64)
	frac, _ := strconv.ParseFloat(m[4], 64)

	// The fractional part may have any precision.
	fracDivisor := math.Pow(10, float64(len(m[4])))

	return hours*3600 + minutes*60 + seconds + frac/fracDivisor
}
