// Package fetch downloads remote source assets into local scratch storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrFetchFailed is matched by every error returned from Fetch.
var ErrFetchFailed = errors.New("fetch failed")

// Fetcher defines the interface for retrieving a remote resource.
type Fetcher interface {
	// Fetch downloads url and writes the full response body to destPath,
	// creating or overwriting the file. Any failure is returned as *Error.
	// There are no retries.
	Fetch(ctx context.Context, url, destPath string) error
}

// Error describes a failed download.
type Error struct {
	// URL is the locator that was requested.
	URL string
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: failed", e.URL)
	}
}

// Unwrap exposes both ErrFetchFailed and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}

// HTTPFetcher implements Fetcher with a resty client.
type HTTPFetcher struct {
	client *resty.Client
}

// Option configures an HTTPFetcher.
type Option func(*resty.Client)

// WithTimeout sets the overall timeout for a single download.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) {
		if d > 0 {
			c.SetTimeout(d)
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *resty.Client) {
		if ua != "" {
			c.SetHeader("User-Agent", ua)
		}
	}
}

// NewHTTPFetcher creates a new HTTPFetcher.
// Retries are disabled: a single failed download aborts the request.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	client := resty.New().
		SetRetryCount(0).
		SetTimeout(60 * time.Second)

	for _, opt := range opts {
		opt(client)
	}

	return &HTTPFetcher{client: client}
}

// Fetch implements Fetcher.Fetch.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL, destPath string) error {
	if err := validateURL(rawURL); err != nil {
		return &Error{URL: rawURL, Err: err}
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetOutput(destPath).
		Get(rawURL)
	if err != nil {
		_ = os.Remove(destPath)
		if ctx.Err() != nil {
			return &Error{URL: rawURL, Err: ctx.Err()}
		}
		return &Error{URL: rawURL, Err: err}
	}

	if !resp.IsSuccess() {
		// resty writes the body to destPath whatever the status.
		_ = os.Remove(destPath)
		return &Error{URL: rawURL, StatusCode: resp.StatusCode()}
	}

	return nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("invalid url: missing host")
	}
	return nil
}

// ExtFromURL returns the lowercase file extension of the URL path, including
// the dot, or fallback when the path has no usable extension.
func ExtFromURL(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if len(ext) < 2 || len(ext) > 6 {
		return fallback
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return fallback
		}
	}
	return ext
}

// Compile-time check that HTTPFetcher implements Fetcher.
var _ Fetcher = (*HTTPFetcher)(nil)
