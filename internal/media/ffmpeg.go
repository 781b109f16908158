package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/maauso/slideshow-api/internal/audio"
	"github.com/maauso/slideshow-api/internal/timeline"
)

// Static errors for media operations.
var (
	// ErrInvalidInput is returned when a render request is rejected before ffmpeg runs.
	ErrInvalidInput = errors.New("invalid render input")
	// ErrInvalidDimensions is returned when the provided dimensions are not positive and even.
	ErrInvalidDimensions = fmt.Errorf("%w: width and height must be positive and even", ErrInvalidInput)
	// ErrEmptyTimeline is returned when the timeline has no segments.
	ErrEmptyTimeline = fmt.Errorf("%w: timeline has no segments", ErrInvalidInput)
	// ErrInvalidDuration is returned when a segment or the audio duration is not positive.
	ErrInvalidDuration = fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	// ErrSegmentTooShort is returned when a segment would be shown for less than one frame.
	ErrSegmentTooShort = fmt.Errorf("%w: segment shorter than one frame", ErrInvalidInput)
	// ErrTimelineMismatch is returned when the segments do not add up to the audio duration.
	ErrTimelineMismatch = fmt.Errorf("%w: timeline does not match audio", ErrInvalidInput)
)

// timelineTolerance is the relative difference allowed between the timeline
// and the audio duration.
const timelineTolerance = 1e-6

// FFmpegRenderer implements Renderer using the ffmpeg CLI.
type FFmpegRenderer struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegRenderer creates a new FFmpegRenderer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegRenderer(ffmpegPath string) *FFmpegRenderer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegRenderer{ffmpegPath: ffmpegPath}
}

// Render implements Renderer.Render.
func (r *FFmpegRenderer) Render(ctx context.Context, tl timeline.Timeline, track audio.Track, outputPath string, opts RenderOpts) error {
	args, err := BuildRenderArgs(tl, track, outputPath, opts)
	if err != nil {
		return err
	}
	return r.runFFmpeg(ctx, args)
}

// BuildRenderArgs returns the ffmpeg arguments for rendering tl with track.
//
// Every segment becomes a looped still input trimmed to the frame count
// given by SegmentFrames. Each input is letterboxed to the target size,
// normalised to square pixels and yuv420p, and the concat filter joins them
// in timeline order. The audio input is mapped as the sole audio stream and
// the output is cut at the audio duration.
func BuildRenderArgs(tl timeline.Timeline, track audio.Track, outputPath string, opts RenderOpts) ([]string, error) {
	opts = withDefaults(opts)

	if tl.Len() == 0 {
		return nil, ErrEmptyTimeline
	}
	if opts.Width <= 0 || opts.Height <= 0 || opts.Width%2 != 0 || opts.Height%2 != 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, opts.Width, opts.Height)
	}
	if *opts.CRF < 0 || *opts.CRF > 51 {
		return nil, fmt.Errorf("%w: crf %d outside 0-51", ErrInvalidInput, *opts.CRF)
	}
	if !positive(track.Duration) {
		return nil, fmt.Errorf("%w: audio duration %v", ErrInvalidDuration, track.Duration)
	}
	frames, err := SegmentFrames(tl, FrameRate)
	if err != nil {
		return nil, err
	}
	if sum := tl.Sum(); math.Abs(sum-track.Duration) > timelineTolerance*track.Duration {
		return nil, fmt.Errorf("%w: timeline covers %vs, audio lasts %vs", ErrTimelineMismatch, sum, track.Duration)
	}

	fps := strconv.Itoa(FrameRate)

	args := []string{"-y", "-hide_banner"}
	for _, path := range tl.ImagePaths() {
		args = append(args,
			"-loop", "1", // Repeat the still image; trim ends it
			"-framerate", fps,
			"-i", path,
		)
	}
	audioInput := tl.Len()
	args = append(args, "-i", track.Path)

	args = append(args,
		"-filter_complex", buildFilterGraph(frames, opts),
		"-map", "[outv]",
		"-map", fmt.Sprintf("%d:a:0", audioInput),
		"-c:v", "libx264",
		"-preset", opts.Preset,
		"-crf", strconv.Itoa(*opts.CRF),
		"-pix_fmt", "yuv420p",
		"-r", fps,
		"-c:a", "aac",
		"-b:a", "128k",
		"-t", formatSeconds(track.Duration),
		"-movflags", "+faststart",
		outputPath,
	)

	return args, nil
}

// SegmentFrames returns how many frames each segment is shown for at fps.
//
// Boundaries are rounded on the cumulative timeline, so the counts always
// add up to round(fps*total) and rounding never accumulates across segments.
func SegmentFrames(tl timeline.Timeline, fps int) ([]int, error) {
	if tl.Len() == 0 {
		return nil, ErrEmptyTimeline
	}

	frames := make([]int, 0, tl.Len())
	var cum float64
	prev := 0
	for _, seg := range tl.Segments {
		if !positive(seg.Duration) {
			return nil, fmt.Errorf("%w: segment %d duration %v", ErrInvalidDuration, seg.Index, seg.Duration)
		}
		cum += seg.Duration
		end := int(math.Round(cum * float64(fps)))
		if end <= prev {
			return nil, fmt.Errorf("%w: segment %d lasts %vs at %d fps", ErrSegmentTooShort, seg.Index, seg.Duration, fps)
		}
		frames = append(frames, end-prev)
		prev = end
	}
	return frames, nil
}

// buildFilterGraph trims, scales and pads every image input, then
// concatenates them.
func buildFilterGraph(frames []int, opts RenderOpts) string {
	// scale: fit within w x h keeping aspect ratio
	// pad: center on a black canvas of exactly w x h
	scalePad := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2:black,setsar=1,format=yuv420p",
		opts.Width, opts.Height, opts.Width, opts.Height,
	)

	chains := lo.Map(frames, func(n int, i int) string {
		return fmt.Sprintf("[%d:v]trim=end_frame=%d,setpts=PTS-STARTPTS,%s[v%d]", i, n, scalePad, i)
	})
	labels := lo.Map(frames, func(_ int, i int) string {
		return fmt.Sprintf("[v%d]", i)
	})

	concat := fmt.Sprintf("%sconcat=n=%d:v=1:a=0[outv]", strings.Join(labels, ""), len(frames))

	return strings.Join(append(chains, concat), ";")
}

func withDefaults(opts RenderOpts) RenderOpts {
	def := DefaultRenderOpts()
	if opts.Width == 0 && opts.Height == 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	if opts.Preset == "" {
		opts.Preset = def.Preset
	}
	if opts.CRF == nil {
		opts.CRF = def.CRF
	}
	return opts
}

func positive(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0
}

// formatSeconds renders a duration for ffmpeg with microsecond precision.
func formatSeconds(d float64) string {
	return strconv.FormatFloat(d, 'f', 6, 64)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (r *FFmpegRenderer) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, tail(e.Stderr, 2048))
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// tail keeps the last n bytes of s; ffmpeg puts the useful message at the end.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// Compile-time check that FFmpegRenderer implements Renderer.
var _ Renderer = (*FFmpegRenderer)(nil)
