// Package server provides the HTTP server for the slideshow API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// VideoRequest is the HTTP request body for creating a slideshow video,
// used by both the synchronous and the job endpoints.
type VideoRequest struct {
	// ImageURLs are the image locators in display order.
	ImageURLs []string `json:"image_urls" validate:"required,min=1,dive,required,http_url"`
	// AudioURL is the audio locator.
	AudioURL string `json:"audio_url" validate:"required,http_url"`
	// Width is the optional target video width.
	Width int `json:"width,omitempty" validate:"omitempty,min=16,max=4096"`
	// Height is the optional target video height.
	Height int `json:"height,omitempty" validate:"omitempty,min=16,max=4096"`
}

// VideoResponse is the HTTP response after a video was created synchronously.
type VideoResponse struct {
	Message     string  `json:"message"`
	VideoURL    string  `json:"video_url"`
	JobID       string  `json:"job_id"`
	DurationSec float64 `json:"duration_sec"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current pipeline stage.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains the error message if the job failed.
	Error string `json:"error,omitempty"`
	// ErrorCode is the machine-readable failure code if the job failed.
	ErrorCode string `json:"error_code,omitempty"`
	// FailedStage is the stage the job failed in.
	FailedStage string `json:"failed_stage,omitempty"`
	// VideoURL is the published video URL once the job is DONE.
	VideoURL string `json:"video_url,omitempty"`
	// DurationSec is the measured audio length, once known.
	DurationSec float64 `json:"duration_sec,omitempty"`
}

// JobListResponse is the HTTP response for listing jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
	// Retryable tells the client whether sending the same request again may succeed.
	Retryable bool `json:"retryable"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
