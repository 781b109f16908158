// Package audio measures the playback duration of audio tracks.
package audio

import (
	"context"
	"errors"
)

// ErrDecodeFailed is matched by every error returned from Prober.Duration.
var ErrDecodeFailed = errors.New("audio decode failed")

// Track is a downloaded audio file together with its measured duration.
type Track struct {
	// Path is the local path of the audio file.
	Path string
	// Duration is the playback length in seconds. Always positive.
	Duration float64
}

// Prober defines the interface for measuring audio duration.
type Prober interface {
	// Duration returns the total playback duration of the audio file at path,
	// in seconds. The value is strictly positive for any decodable file.
	// Unreadable, corrupt or unsupported input returns an error matching
	// ErrDecodeFailed.
	Duration(ctx context.Context, path string) (float64, error)
}
