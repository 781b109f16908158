package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/maauso/slideshow-api/internal/job"
)

// maxRequestBytes bounds request bodies; requests carry URLs, not media.
const maxRequestBytes = 1 << 20

// statusClientClosedRequest is reported when the client went away mid-request.
const statusClientClosedRequest = 499

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.ProcessVideoService
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.ProcessVideoService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateVideo handles POST /videos requests. It runs the whole pipeline
// on the request context and responds once the video is published.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeVideoRequest(w, r)
	if !ok {
		return
	}

	out, err := h.service.Process(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, VideoResponse{
		Message:     out.Message,
		VideoURL:    out.VideoURL,
		JobID:       out.JobID,
		DurationSec: out.Duration,
	})
}

// CreateJob handles POST /jobs requests. The job runs in the background
// and its progress is read with GET /jobs/{id}.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeVideoRequest(w, r)
	if !ok {
		return
	}

	var (
		createdJob *job.Job
		err        error
	)
	if h.enableAsyncProcess {
		createdJob, err = h.service.Submit(r.Context(), input)
	} else {
		createdJob, err = h.service.CreateJob(r.Context(), input)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.Int("images", len(input.ImageURLs)),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID", false)
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND", false)
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED", true)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// ListJobs handles GET /jobs requests.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListJobs(r.Context())
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "JOB_FETCH_FAILED", true)
		return
	}

	writeJSON(w, http.StatusOK, JobListResponse{
		Jobs: lo.Map(jobs, func(j *job.Job, _ int) JobResponse {
			return toJobResponse(j)
		}),
	})
}

// decodeVideoRequest decodes and validates a VideoRequest, writing the
// error response itself when it returns false.
func (h *Handlers) decodeVideoRequest(w http.ResponseWriter, r *http.Request) (job.ProcessVideoInput, bool) {
	var req VideoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON", false)
		return job.ProcessVideoInput{}, false
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR", false)
		return job.ProcessVideoInput{}, false
	}

	return job.ProcessVideoInput{
		ImageURLs: req.ImageURLs,
		AudioURL:  req.AudioURL,
		Width:     req.Width,
		Height:    req.Height,
	}, true
}

// writeServiceError maps a ProcessVideoService error to an HTTP response.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := job.ErrorCode(err)
	status := statusForCode(code)

	log := h.logger.With(slog.String("request_id", RequestID(r.Context())))
	switch {
	case status == statusClientClosedRequest && r.Context().Err() != nil:
		log.Info("client went away", slog.String("error", err.Error()))
	case status >= http.StatusInternalServerError:
		log.Error("request failed",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	default:
		log.Debug("request rejected",
			slog.String("code", code),
			slog.String("error", err.Error()),
		)
	}

	writeError(w, status, job.Summary(err), code, job.Retryable(err))
}

// statusForCode returns the HTTP status for a job error code.
func statusForCode(code string) int {
	switch code {
	case job.CodeInvalidRequest:
		return http.StatusBadRequest
	case job.CodeAudioDecodeFailed:
		return http.StatusUnprocessableEntity
	case job.CodeFetchFailed, job.CodePublishFailed:
		return http.StatusBadGateway
	case job.CodeCancelled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func toJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Status:      string(j.Status),
		Progress:    j.Progress,
		Error:       j.Error,
		ErrorCode:   j.ErrorCode,
		FailedStage: string(j.FailedStage),
		VideoURL:    j.VideoURL,
		DurationSec: j.AudioDuration,
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string, retryable bool) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Retryable: retryable,
	})
}
