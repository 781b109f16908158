// Package timeline builds the ordered sequence of timed image segments that
// makes up the visual track of a slideshow video.
package timeline

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Static errors for timeline construction.
var (
	// ErrNoImages is returned when a timeline is requested for zero images.
	ErrNoImages = errors.New("timeline: at least one image is required")
	// ErrInvalidDuration is returned when the total duration is not a positive finite number.
	ErrInvalidDuration = errors.New("timeline: total duration must be positive")
)

// Segment is one image together with the time it stays on screen.
type Segment struct {
	// Index is the position of the image in the request.
	Index int
	// ImagePath is the local path of the downloaded image.
	ImagePath string
	// Duration is the display time in seconds.
	Duration float64
}

// Timeline is the ordered list of segments covering the whole video.
type Timeline struct {
	Segments []Segment
	// Total is the duration the segments were split from, in seconds.
	Total float64
}

// Build splits total evenly across imagePaths, keeping input order.
// Identical inputs always produce an identical timeline.
func Build(imagePaths []string, total float64) (Timeline, error) {
	if len(imagePaths) == 0 {
		return Timeline{}, ErrNoImages
	}
	if math.IsNaN(total) || math.IsInf(total, 0) || total <= 0 {
		return Timeline{}, fmt.Errorf("%w: got %v", ErrInvalidDuration, total)
	}

	perImage := total / float64(len(imagePaths))

	segments := lo.Map(imagePaths, func(path string, i int) Segment {
		return Segment{
			Index:     i,
			ImagePath: path,
			Duration:  perImage,
		}
	})

	return Timeline{Segments: segments, Total: total}, nil
}

// Len returns the number of segments.
func (t Timeline) Len() int {
	return len(t.Segments)
}

// Sum returns the sum of all segment durations.
func (t Timeline) Sum() float64 {
	return lo.SumBy(t.Segments, func(s Segment) float64 {
		return s.Duration
	})
}

// ImagePaths returns the image paths in display order.
func (t Timeline) ImagePaths() []string {
	return lo.Map(t.Segments, func(s Segment, _ int) string {
		return s.ImagePath
	})
}
