// Package job provides the Job aggregate for slideshow rendering requests.
// A Job walks a fixed pipeline of stages, from fetching the audio through
// publishing the rendered video, and records the first failure it meets.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/slideshow-api/internal/job/id"
)

// Status represents the current pipeline stage of a Job.
type Status string

const (
	// StatusIdle indicates the job was accepted and has not started yet.
	StatusIdle Status = "IDLE"
	// StatusFetchingAudio indicates the audio track is being downloaded.
	StatusFetchingAudio Status = "FETCHING_AUDIO"
	// StatusProbingAudio indicates the audio duration is being measured.
	StatusProbingAudio Status = "PROBING_AUDIO"
	// StatusFetchingImages indicates the images are being downloaded in order.
	StatusFetchingImages Status = "FETCHING_IMAGES"
	// StatusComposing indicates the timeline is being built.
	StatusComposing Status = "COMPOSING"
	// StatusRendering indicates ffmpeg is encoding the video.
	StatusRendering Status = "RENDERING"
	// StatusPublishing indicates the video is being uploaded.
	StatusPublishing Status = "PUBLISHING"
	// StatusDone indicates the video was published.
	StatusDone Status = "DONE"
	// StatusFailed indicates a stage failed; later stages never ran.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusIdle:           {StatusFetchingAudio, StatusFailed},
	StatusFetchingAudio:  {StatusProbingAudio, StatusFailed},
	StatusProbingAudio:   {StatusFetchingImages, StatusFailed},
	StatusFetchingImages: {StatusComposing, StatusFailed},
	StatusComposing:      {StatusRendering, StatusFailed},
	StatusRendering:      {StatusPublishing, StatusFailed},
	StatusPublishing:     {StatusDone, StatusFailed},
	StatusDone:           {},
	StatusFailed:         {},
}

// stageProgress is the progress reported on entering each stage.
var stageProgress = map[Status]int{
	StatusIdle:           0,
	StatusFetchingAudio:  5,
	StatusProbingAudio:   15,
	StatusFetchingImages: 20,
	StatusComposing:      40,
	StatusRendering:      45,
	StatusPublishing:     90,
	StatusDone:           100,
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Job represents a slideshow rendering job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job. It is also the token that
	// names the job's scratch workspace and published video.
	ID string
	// Status is the current pipeline stage.
	Status Status
	// Progress is the percentage of completion (0-100).
	Progress int
	// ImageURLs are the image locators in display order.
	ImageURLs []string
	// AudioURL is the audio locator.
	AudioURL string
	// Width is the target video width; zero means the configured default.
	Width int
	// Height is the target video height; zero means the configured default.
	Height int
	// AudioDuration is the measured audio length in seconds.
	AudioDuration float64
	// VideoURL is the published video URL once the job is DONE.
	VideoURL string
	// Error contains the failure message if the job failed.
	Error string
	// ErrorCode is the machine-readable failure code, see ErrorCode.
	ErrorCode string
	// FailedStage is the stage the job was in when it failed.
	FailedStage Status
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when the job reached DONE or FAILED.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IDLE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IDLE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusIdle,
		ImageURLs: make([]string, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()
	if p, ok := stageProgress[status]; ok {
		j.Progress = p
	}

	switch status {
	case StatusFetchingAudio:
		j.StartedAt = j.UpdatedAt
	case StatusDone, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Complete records the published URL and transitions the job to DONE.
// Returns ErrInvalidTransition unless the job is PUBLISHING.
func (j *Job) Complete(videoURL string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.transitionLocked(StatusDone); err != nil {
		return err
	}
	j.VideoURL = videoURL
	return nil
}

// Fail transitions the job to FAILED, recording the stage it failed in,
// the error message and its code.
// Returns ErrInvalidTransition if the job is already terminal.
func (j *Job) Fail(cause error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	stage := j.Status
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.FailedStage = stage
	j.Error = Summary(cause)
	j.ErrorCode = ErrorCode(cause)
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetAudioDuration records the measured audio duration in seconds.
func (j *Job) SetAudioDuration(seconds float64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.AudioDuration = seconds
	j.UpdatedAt = time.Now()
}

// UpdateProgress sets the progress percentage (0-100).
func (j *Job) UpdateProgress(progress int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress = min(max(progress, 0), 100)
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusDone || j.Status == StatusFailed
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:            j.ID,
		Status:        j.Status,
		Progress:      j.Progress,
		ImageURLs:     slices.Clone(j.ImageURLs),
		AudioURL:      j.AudioURL,
		Width:         j.Width,
		Height:        j.Height,
		AudioDuration: j.AudioDuration,
		VideoURL:      j.VideoURL,
		Error:         j.Error,
		ErrorCode:     j.ErrorCode,
		FailedStage:   j.FailedStage,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
	}
}
