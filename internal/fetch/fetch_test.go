package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch_Success(t *testing.T) {
	payload := []byte("\x89PNG fake image bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/img/a.png", r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "image_000.png")
	f := NewHTTPFetcher()

	err := f.Fetch(context.Background(), server.URL+"/img/a.png", dest)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestHTTPFetcher_Fetch_OverwritesExistingFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "audio.mp3")
	require.NoError(t, os.WriteFile(dest, []byte("old content that is longer"), 0600))

	err := NewHTTPFetcher().Fetch(context.Background(), server.URL, dest)
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestHTTPFetcher_Fetch_NonSuccessStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"forbidden", http.StatusForbidden},
		{"server error", http.StatusInternalServerError},
		{"bad gateway", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("error page"))
			}))
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "image.jpg")
			err := NewHTTPFetcher().Fetch(context.Background(), server.URL+"/missing.jpg", dest)
			require.Error(t, err)

			assert.ErrorIs(t, err, ErrFetchFailed)

			var fe *Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.status, fe.StatusCode)
			assert.Equal(t, server.URL+"/missing.jpg", fe.URL)
			assert.Contains(t, err.Error(), "missing.jpg")

			// No retries.
			assert.Equal(t, int32(1), calls.Load())

			_, statErr := os.Stat(dest)
			assert.True(t, os.IsNotExist(statErr), "error body must not be left on disk")
		})
	}
}

func TestHTTPFetcher_Fetch_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	addr := server.URL
	server.Close()

	err := NewHTTPFetcher().Fetch(context.Background(), addr+"/a.jpg", filepath.Join(t.TempDir(), "a.jpg"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
	assert.NotNil(t, fe.Err)
}

func TestHTTPFetcher_Fetch_InvalidURL(t *testing.T) {
	tests := []string{
		"",
		"not a url",
		"ftp://example.com/a.jpg",
		"file:///etc/passwd",
		"http://",
	}

	f := NewHTTPFetcher()
	for _, u := range tests {
		t.Run(u, func(t *testing.T) {
			err := f.Fetch(context.Background(), u, filepath.Join(t.TempDir(), "x"))
			assert.ErrorIs(t, err, ErrFetchFailed)
		})
	}
}

func TestHTTPFetcher_Fetch_WriteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	// A regular file where a directory is expected makes the write fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	err := NewHTTPFetcher().Fetch(context.Background(), server.URL, filepath.Join(blocker, "a.jpg"))
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestHTTPFetcher_Fetch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewHTTPFetcher().Fetch(ctx, server.URL, filepath.Join(t.TempDir(), "a.jpg"))
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPFetcher_Options(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "slideshow-test/1.0", r.Header.Get("User-Agent"))
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	f := NewHTTPFetcher(WithUserAgent("slideshow-test/1.0"), WithTimeout(50*time.Millisecond))

	err := f.Fetch(context.Background(), server.URL, filepath.Join(t.TempDir(), "slow"))
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestError_Message(t *testing.T) {
	withStatus := &Error{URL: "https://cdn.example.com/a.jpg", StatusCode: 404}
	assert.Equal(t, "fetch https://cdn.example.com/a.jpg: unexpected status 404 Not Found", withStatus.Error())

	cause := errors.New("connection reset")
	withCause := &Error{URL: "https://cdn.example.com/a.jpg", Err: cause}
	assert.Contains(t, withCause.Error(), "connection reset")
	assert.ErrorIs(t, withCause, cause)
	assert.ErrorIs(t, withCause, ErrFetchFailed)
}

func TestExtFromURL(t *testing.T) {
	tests := []struct {
		url      string
		fallback string
		want     string
	}{
		{"https://cdn.example.com/photos/cat.JPG", ".jpg", ".jpg"},
		{"https://cdn.example.com/photos/cat.png?size=large", ".jpg", ".png"},
		{"https://cdn.example.com/track.wav#t=1", ".mp3", ".wav"},
		{"https://cdn.example.com/render", ".jpg", ".jpg"},
		{"https://cdn.example.com/dir.v2/file", ".mp3", ".mp3"},
		{"https://cdn.example.com/a.verylongext", ".jpg", ".jpg"},
		{"https://cdn.example.com/a.m-p", ".mp3", ".mp3"},
		{"://bad", ".jpg", ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtFromURL(tt.url, tt.fallback))
		})
	}
}
