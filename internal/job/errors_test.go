package job

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maauso/slideshow-api/internal/fetch"
)

func TestErrorCode(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid request", fmt.Errorf("%w: no images", ErrInvalidRequest), CodeInvalidRequest},
		{"fetch", stageError(ErrFetchFailed, "fetch image 0", cause), CodeFetchFailed},
		{"audio", stageError(ErrAudioDecodeFailed, "probe audio", cause), CodeAudioDecodeFailed},
		{"render", stageError(ErrRenderFailed, "render video", cause), CodeRenderFailed},
		{"publish", stageError(ErrPublishFailed, "publish video", cause), CodePublishFailed},
		{"cancelled fetch", stageError(ErrFetchFailed, "fetch audio", context.Canceled), CodeCancelled},
		{"deadline render", stageError(ErrRenderFailed, "render video", context.DeadlineExceeded), CodeCancelled},
		{"unknown", cause, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestStageError_KeepsKindAndCause(t *testing.T) {
	cause := &fetch.Error{URL: "http://x/a.jpg", StatusCode: 404, Err: errors.New("not found")}
	err := stageError(ErrFetchFailed, "fetch image 2", cause)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, fetch.ErrFetchFailed)

	var fe *fetch.Error
	assert.ErrorAs(t, err, &fe)
	assert.Equal(t, 404, fe.StatusCode)
	assert.Contains(t, err.Error(), "fetch image 2")
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid request keeps detail", fmt.Errorf("%w: audio URL is required", ErrInvalidRequest), "invalid request: audio URL is required"},
		{
			"render hides tool output",
			stageError(ErrRenderFailed, "render video", errors.New("ffmpeg error: exit status 1\nargs: [-i /tmp/ws/image_000.jpg]")),
			"render failed: render video",
		},
		{
			"fetch names url and status",
			stageError(ErrFetchFailed, "fetch image 1", &fetch.Error{URL: "http://x/b.jpg", StatusCode: 404}),
			"fetch failed: fetch image 1: http://x/b.jpg returned 404 Not Found",
		},
		{
			"fetch transport error",
			stageError(ErrFetchFailed, "fetch audio", &fetch.Error{URL: "http://x/a.mp3", Err: errors.New("dial tcp: refused")}),
			"fetch failed: fetch audio: http://x/a.mp3 unreachable",
		},
		{"cancelled", stageError(ErrRenderFailed, "render video", context.DeadlineExceeded), "job cancelled or timed out"},
		{"internal", fmt.Errorf("create workspace: mkdir /tmp/ws/abc: %w", errors.New("no space")), "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summary(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	fetchErr := func(status int) error {
		return stageError(ErrFetchFailed, "fetch image 0", &fetch.Error{URL: "http://x", StatusCode: status})
	}
	cause := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid request", fmt.Errorf("%w: x", ErrInvalidRequest), false},
		{"not found", fetchErr(404), false},
		{"forbidden", fetchErr(403), false},
		{"request timeout", fetchErr(408), true},
		{"rate limited", fetchErr(429), true},
		{"server error", fetchErr(503), true},
		{"network error", stageError(ErrFetchFailed, "fetch audio", cause), true},
		{"audio", stageError(ErrAudioDecodeFailed, "probe audio", cause), false},
		{"render", stageError(ErrRenderFailed, "render video", cause), false},
		{"publish", stageError(ErrPublishFailed, "publish video", cause), true},
		{"cancelled", context.Canceled, true},
		{"internal", cause, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}
