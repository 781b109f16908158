package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/maauso/slideshow-api/internal/fetch"
)

// Error kinds. Every error returned by ProcessVideoService matches at most
// one of these via errors.Is, and also wraps the underlying cause.
var (
	// ErrInvalidRequest is returned for malformed input, before any I/O.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrFetchFailed is returned when an image or the audio cannot be downloaded.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrAudioDecodeFailed is returned when the audio duration cannot be measured.
	ErrAudioDecodeFailed = errors.New("audio decode failed")
	// ErrRenderFailed is returned when the video cannot be encoded.
	ErrRenderFailed = errors.New("render failed")
	// ErrPublishFailed is returned when the video cannot be uploaded.
	ErrPublishFailed = errors.New("publish failed")
)

// Error codes exposed to API clients.
const (
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeFetchFailed       = "FETCH_FAILED"
	CodeAudioDecodeFailed = "AUDIO_DECODE_FAILED"
	CodeRenderFailed      = "RENDER_FAILED"
	CodePublishFailed     = "PUBLISH_FAILED"
	CodeCancelled         = "CANCELLED"
	CodeInternal          = "INTERNAL_ERROR"
)

// StageError is a pipeline failure: the error kind, the stage it happened
// in and the underlying cause.
type StageError struct {
	Kind  error
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Stage, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// stageError wraps cause with an error kind and the stage it happened in.
func stageError(kind error, stage string, cause error) error {
	return &StageError{Kind: kind, Stage: stage, Err: cause}
}

// Summary returns a client-facing description of err. Invalid requests keep
// their full message; other failures name the kind and stage only, so tool
// output and scratch paths stay in the logs. Failed downloads also name the
// URL and the status the asset host returned.
func Summary(err error) string {
	switch ErrorCode(err) {
	case "":
		return ""
	case CodeInvalidRequest:
		return err.Error()
	case CodeCancelled:
		return "job cancelled or timed out"
	}

	var se *StageError
	if !errors.As(err, &se) {
		return "internal error"
	}

	var fe *fetch.Error
	if errors.As(se.Err, &fe) {
		if fe.StatusCode != 0 {
			return fmt.Sprintf("%v: %s: %s returned %d %s",
				se.Kind, se.Stage, fe.URL, fe.StatusCode, http.StatusText(fe.StatusCode))
		}
		return fmt.Sprintf("%v: %s: %s unreachable", se.Kind, se.Stage, fe.URL)
	}
	return fmt.Sprintf("%v: %s", se.Kind, se.Stage)
}

// ErrorCode maps err to its API error code. Cancellation and deadline
// errors take precedence over the stage kind they were wrapped in.
// A nil error yields the empty string.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, ErrInvalidRequest):
		return CodeInvalidRequest
	case errors.Is(err, ErrFetchFailed):
		return CodeFetchFailed
	case errors.Is(err, ErrAudioDecodeFailed):
		return CodeAudioDecodeFailed
	case errors.Is(err, ErrRenderFailed):
		return CodeRenderFailed
	case errors.Is(err, ErrPublishFailed):
		return CodePublishFailed
	default:
		return CodeInternal
	}
}

// Retryable reports whether submitting the same request again may succeed.
// Client errors (bad input, undecodable audio, 4xx from an asset host) are
// not retryable; transient transport, upload and timeout failures are.
func Retryable(err error) bool {
	switch ErrorCode(err) {
	case CodeFetchFailed:
		var fe *fetch.Error
		if errors.As(err, &fe) && fe.StatusCode >= 400 && fe.StatusCode < 500 {
			return fe.StatusCode == http.StatusRequestTimeout || fe.StatusCode == http.StatusTooManyRequests
		}
		return true
	case CodePublishFailed, CodeCancelled, CodeInternal:
		return true
	default:
		return false
	}
}
