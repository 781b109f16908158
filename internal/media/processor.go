// Package media renders slideshow videos from still images and an audio track.
package media

import (
	"context"

	"github.com/samber/lo"

	"github.com/maauso/slideshow-api/internal/audio"
	"github.com/maauso/slideshow-api/internal/timeline"
)

// FrameRate is the fixed output frame rate of rendered videos.
const FrameRate = 24

// RenderOpts controls the encoded output.
type RenderOpts struct {
	// Width and Height are the output frame size in pixels. Both must be
	// positive and even (yuv420p chroma subsampling).
	Width  int
	Height int
	// Preset is the libx264 speed preset. Defaults to "fast".
	Preset string
	// CRF is the libx264 constant rate factor, 0 (lossless) to 51.
	// Nil uses 23.
	CRF *int
}

// DefaultRenderOpts returns 1280x720 output with the default x264 settings.
func DefaultRenderOpts() RenderOpts {
	return RenderOpts{
		Width:  1280,
		Height: 720,
		Preset: "fast",
		CRF:    lo.ToPtr(23),
	}
}

// Renderer defines the interface for composing and encoding a slideshow.
type Renderer interface {
	// Render displays every timeline segment as a static frame for its
	// duration, in timeline order with no transition, attaches track as the
	// only audio stream starting at zero, and encodes the result to
	// outputPath as H.264/AAC MP4 at FrameRate fps.
	//
	// Partial output left behind by a failed render must be discarded by
	// the caller.
	Render(ctx context.Context, tl timeline.Timeline, track audio.Track, outputPath string, opts RenderOpts) error
}
