package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maauso/slideshow-api/internal/audio"
	"github.com/maauso/slideshow-api/internal/fetch"
	"github.com/maauso/slideshow-api/internal/job/id"
	"github.com/maauso/slideshow-api/internal/media"
	"github.com/maauso/slideshow-api/internal/storage"
	"github.com/maauso/slideshow-api/internal/timeline"
)

// SuccessMessage is reported for every published video.
const SuccessMessage = "Video created successfully"

// Fallback scratch extensions when a URL path carries none.
const (
	defaultAudioExt = ".mp3"
	defaultImageExt = ".jpg"
)

// ProcessVideoInput contains the input parameters for video processing.
type ProcessVideoInput struct {
	// ImageURLs are the image locators in display order.
	ImageURLs []string
	// AudioURL is the audio locator.
	AudioURL string
	// Width is the target video width; zero uses the configured default.
	Width int
	// Height is the target video height; zero uses the configured default.
	Height int
}

// ProcessVideoOutput contains the result of video processing.
type ProcessVideoOutput struct {
	// JobID is the unique identifier for the job.
	JobID string
	// Status is the final job status.
	Status Status
	// PublicID is the identifier the video was published under.
	PublicID string
	// VideoURL is the URL of the published video.
	VideoURL string
	// Message is a human-readable summary.
	Message string
	// Duration is the audio, and therefore video, length in seconds.
	Duration float64
}

// ProcessVideoService orchestrates the slideshow workflow:
// fetch audio, probe its duration, fetch images in order, build a uniform
// timeline, render and publish. Stages run strictly one after another and
// the first failure ends the job.
type ProcessVideoService struct {
	repo      Repository
	fetcher   fetch.Fetcher
	prober    audio.Prober
	renderer  media.Renderer
	publisher storage.Publisher
	scratch   *storage.Scratch
	logger    *slog.Logger

	renderOpts  media.RenderOpts
	maxAudioSec float64
	keepScratch bool
	jobTimeout  time.Duration

	wg sync.WaitGroup
}

// Option configures a ProcessVideoService.
type Option func(*ProcessVideoService)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ProcessVideoService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRenderOpts sets the default encoder options.
func WithRenderOpts(opts media.RenderOpts) Option {
	return func(s *ProcessVideoService) {
		s.renderOpts = opts
	}
}

// WithMaxAudioDuration rejects audio longer than seconds. Zero disables the check.
func WithMaxAudioDuration(seconds float64) Option {
	return func(s *ProcessVideoService) {
		if seconds >= 0 {
			s.maxAudioSec = seconds
		}
	}
}

// WithKeepScratch keeps job workspaces on disk after the job ends.
func WithKeepScratch(keep bool) Option {
	return func(s *ProcessVideoService) {
		s.keepScratch = keep
	}
}

// WithJobTimeout bounds background jobs started with Submit. Zero disables it.
func WithJobTimeout(d time.Duration) Option {
	return func(s *ProcessVideoService) {
		if d >= 0 {
			s.jobTimeout = d
		}
	}
}

// NewProcessVideoService creates a new ProcessVideoService.
func NewProcessVideoService(
	repo Repository,
	fetcher fetch.Fetcher,
	prober audio.Prober,
	renderer media.Renderer,
	publisher storage.Publisher,
	scratch *storage.Scratch,
	opts ...Option,
) *ProcessVideoService {
	s := &ProcessVideoService{
		repo:       repo,
		fetcher:    fetcher,
		prober:     prober,
		renderer:   renderer,
		publisher:  publisher,
		scratch:    scratch,
		logger:     slog.Default(),
		renderOpts: media.DefaultRenderOpts(),
		jobTimeout: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob validates input and persists a new job in IDLE status.
// Invalid input returns ErrInvalidRequest and nothing is created.
func (s *ProcessVideoService) CreateJob(ctx context.Context, input ProcessVideoInput) (*Job, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	job := New()
	job.ImageURLs = append(job.ImageURLs, input.ImageURLs...)
	job.AudioURL = input.AudioURL
	job.Width = input.Width
	job.Height = input.Height

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.Int("images", len(input.ImageURLs)),
		slog.Int("width", input.Width),
		slog.Int("height", input.Height),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	return job, nil
}

// GetJob retrieves a job by ID. Malformed IDs are reported as not found
// without a repository lookup.
func (s *ProcessVideoService) GetJob(ctx context.Context, jobID string) (*Job, error) {
	if !id.Valid(jobID) {
		return nil, ErrJobNotFound
	}
	return s.repo.FindByID(ctx, jobID)
}

// ListJobs returns all known jobs, oldest first.
func (s *ProcessVideoService) ListJobs(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Process creates a job and runs it to completion on the caller's context.
func (s *ProcessVideoService) Process(ctx context.Context, input ProcessVideoInput) (*ProcessVideoOutput, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.ProcessExistingJob(ctx, job.ID)
}

// Submit creates a job and runs it in the background. The job outlives ctx
// and is bounded by the configured job timeout; its outcome is recorded on
// the job and can be read with GetJob.
func (s *ProcessVideoService) Submit(ctx context.Context, input ProcessVideoInput) (*Job, error) {
	job, err := s.CreateJob(ctx, input)
	if err != nil {
		return nil, err
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if s.jobTimeout > 0 {
		runCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.jobTimeout)
	} else {
		runCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		// The outcome is persisted on the job.
		_, _ = s.ProcessExistingJob(runCtx, job.ID)
	}()

	return job, nil
}

// Wait blocks until all jobs started with Submit have finished.
func (s *ProcessVideoService) Wait() {
	s.wg.Wait()
}

// ProcessExistingJob runs the pipeline for an IDLE job.
//
// The workflow:
//  1. Fetch the audio into the job workspace
//  2. Probe the audio duration
//  3. Fetch every image, one at a time, in input order
//  4. Build a timeline giving each image duration/N seconds
//  5. Render the MP4
//  6. Publish it under the job ID
//
// Every stage change is persisted. On failure the job moves to FAILED with
// the stage error, no later stage runs and the error is returned.
func (s *ProcessVideoService) ProcessExistingJob(ctx context.Context, jobID string) (*ProcessVideoOutput, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if status := job.GetStatus(); status != StatusIdle {
		return nil, fmt.Errorf("%w: job %s is %s", ErrInvalidTransition, jobID, status)
	}

	log := s.logger.With(slog.String("job_id", job.ID))

	ws, err := s.scratch.Workspace(job.ID)
	if err != nil {
		return nil, s.fail(ctx, log, job, fmt.Errorf("create workspace: %w", err))
	}
	defer s.cleanup(log, ws)

	// Stage 1: audio
	if err := s.advance(ctx, job, StatusFetchingAudio); err != nil {
		return nil, s.fail(ctx, log, job, err)
	}
	audioPath := ws.Path("audio" + fetch.ExtFromURL(job.AudioURL, defaultAudioExt))
	log.Info("fetching audio", slog.String("url", job.AudioURL))
	if err := s.fetcher.Fetch(ctx, job.AudioURL, audioPath); err != nil {
		return nil, s.fail(ctx, log, job, stageError(ErrFetchFailed, "fetch audio", err))
	}

	// Stage 2: duration
	if err := s.advance(ctx, job, StatusProbingAudio); err != nil {
		return nil, s.fail(ctx, log, job, err)
	}
	duration, err := s.prober.Duration(ctx, audioPath)
	if err != nil {
		return nil, s.fail(ctx, log, job, stageError(ErrAudioDecodeFailed, "probe audio", err))
	}
	if s.maxAudioSec > 0 && duration > s.maxAudioSec {
		return nil, s.fail(ctx, log, job, fmt.Errorf("%w: audio is %.3fs, limit is %.3fs",
			ErrInvalidRequest, duration, s.maxAudioSec))
	}
	job.SetAudioDuration(duration)
	log.Info("audio probed", slog.Float64("duration_sec", duration))

	// Stage 3: images
	if err := s.advance(ctx, job, StatusFetchingImages); err != nil {
		return nil, s.fail(ctx, log, job, err)
	}
	imagePaths, err := s.fetchImages(ctx, log, job, ws)
	if err != nil {
		return nil, s.fail(ctx, log, job, err)
	}

	// Stage 4: timeline
	if err := s.advance(ctx, job, StatusComposing); err != nil {
		return nil, s.fail(ctx, log, job, err)
	}
	tl, err := timeline.Build(imagePaths, duration)
	if err != nil {
		kind := ErrAudioDecodeFailed
		if errors.Is(err, timeline.ErrNoImages) {
			kind = ErrInvalidRequest
		}
		return nil, s.fail(ctx, log, job, stageError(kind, "build timeline", err))
	}

	// Stage 5: render
	if err := s.advance(ctx, job, StatusRendering); err != nil {
		return nil, s.fail(ctx, log, job, err)
	}
	outputPath := ws.Path(job.ID + ".mp4")
	opts := s.renderOpts
	if job.Width > 0 && job.Height > 0 {
		opts.Width, opts.Height = job.Width, job.Height
	}
	log.Info("rendering video",
		slog.Int("segments", tl.Len()),
		slog.Float64("segment_sec", tl.Segments[0].Duration),
		slog.Int("width", opts.Width),
		slog.Int("height", opts.Height),
	)
	track := audio.Track{Path: audioPath, Duration: duration}
	if err := s.renderer.Render(ctx, tl, track, outputPath, opts); err != nil {
		kind := ErrRenderFailed
		if errors.Is(err, media.ErrSegmentTooShort) {
			// Too many images for the audio length.
			kind = ErrInvalidRequest
		}
		return nil, s.fail(ctx, log, job, stageError(kind, "render video", err))
	}

	// Stage 6: publish
	if err := s.advance(ctx, job, StatusPublishing); err != nil {
		return nil, s.fail(ctx, log, job, err)
	}
	url, err := s.publisher.Publish(ctx, outputPath, job.ID)
	if err != nil {
		return nil, s.fail(ctx, log, job, stageError(ErrPublishFailed, "publish video", err))
	}

	if err := job.Complete(url); err != nil {
		return nil, s.fail(ctx, log, job, err)
	}
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		log.Error("failed to save completed job", slog.String("error", err.Error()))
		return nil, err
	}

	log.Info("video published",
		slog.String("url", url),
		slog.Float64("duration_sec", duration),
	)

	return &ProcessVideoOutput{
		JobID:    job.ID,
		Status:   job.GetStatus(),
		PublicID: job.ID,
		VideoURL: url,
		Message:  SuccessMessage,
		Duration: duration,
	}, nil
}

// fetchImages downloads every image sequentially, in input order, stopping
// at the first failure.
func (s *ProcessVideoService) fetchImages(ctx context.Context, log *slog.Logger, job *Job, ws *storage.Workspace) ([]string, error) {
	paths := make([]string, 0, len(job.ImageURLs))
	progress := stageProgress[StatusFetchingImages]
	span := stageProgress[StatusComposing] - progress

	for i, u := range job.ImageURLs {
		path := ws.Path(fmt.Sprintf("image_%03d%s", i, fetch.ExtFromURL(u, defaultImageExt)))
		log.Debug("fetching image", slog.Int("index", i), slog.String("url", u))

		if err := s.fetcher.Fetch(ctx, u, path); err != nil {
			return nil, stageError(ErrFetchFailed, fmt.Sprintf("fetch image %d", i), err)
		}
		paths = append(paths, path)

		job.UpdateProgress(progress + span*(i+1)/len(job.ImageURLs))
		if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
			return nil, fmt.Errorf("save progress: %w", err)
		}
	}

	return paths, nil
}

// advance moves job to status and persists it.
func (s *ProcessVideoService) advance(ctx context.Context, job *Job, status Status) error {
	if err := job.TransitionTo(status); err != nil {
		return fmt.Errorf("%w: %s -> %s", err, job.GetStatus(), status)
	}
	return s.repo.Save(context.WithoutCancel(ctx), job)
}

// fail records cause on the job, persists it and returns cause.
func (s *ProcessVideoService) fail(ctx context.Context, log *slog.Logger, job *Job, cause error) error {
	stage := job.GetStatus()
	if job.IsTerminal() {
		log.Warn("job already finished, not marking as failed",
			slog.String("status", string(stage)),
			slog.String("error", cause.Error()),
		)
		return cause
	}
	if err := job.Fail(cause); err != nil {
		log.Error("failed to mark job as failed",
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()),
		)
		return cause
	}

	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		log.Error("failed to save failed job", slog.String("error", err.Error()))
	}

	log.Error("job failed",
		slog.String("stage", string(stage)),
		slog.String("code", ErrorCode(cause)),
		slog.String("error", cause.Error()),
	)
	return cause
}

// cleanup removes the job workspace unless scratch files are kept.
func (s *ProcessVideoService) cleanup(log *slog.Logger, ws *storage.Workspace) {
	if s.keepScratch {
		log.Debug("keeping scratch workspace", slog.String("dir", ws.Dir()))
		return
	}
	if err := ws.Remove(); err != nil {
		log.Warn("failed to remove scratch workspace", slog.String("error", err.Error()))
	}
}

// validateInput rejects requests that can never produce a video.
func validateInput(input ProcessVideoInput) error {
	if len(input.ImageURLs) == 0 {
		return fmt.Errorf("%w: at least one image is required", ErrInvalidRequest)
	}
	for i, u := range input.ImageURLs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("%w: image %d has an empty URL", ErrInvalidRequest, i)
		}
	}
	if strings.TrimSpace(input.AudioURL) == "" {
		return fmt.Errorf("%w: audio URL is required", ErrInvalidRequest)
	}
	if (input.Width == 0) != (input.Height == 0) {
		return fmt.Errorf("%w: width and height must be set together", ErrInvalidRequest)
	}
	if input.Width < 0 || input.Height < 0 || input.Width%2 != 0 || input.Height%2 != 0 {
		return fmt.Errorf("%w: width and height must be positive even numbers", ErrInvalidRequest)
	}
	return nil
}
