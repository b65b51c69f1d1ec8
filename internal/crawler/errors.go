package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Crawl errors.
// All of them are contained at task level: none of them stops a run.
var (
	// ErrInvalidReference is returned by Resolve when a link or image
	// reference cannot be turned into an absolute http(s) URL.
	// Such references are logged and discarded, never retried.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrInvalidSeed is returned by Spider.Run when the seed URL is not an
	// absolute http(s) URL with a host.
	ErrInvalidSeed = errors.New("invalid seed URL")

	// ErrRetryScheduled is returned by Fetcher.Attempt when an attempt
	// failed and the task was handed back for a delayed retry.
	ErrRetryScheduled = errors.New("retry scheduled")

	// ErrAbandoned is returned by Fetcher.Attempt when the retry budget of a
	// URL is exhausted. The URL is recorded in the frontier's failed set.
	ErrAbandoned = errors.New("retry budget exhausted")

	// ErrAlreadyFailed is returned by Fetcher.Attempt for a task whose URL
	// was abandoned by another task of the same kind. No attempt is made.
	ErrAlreadyFailed = errors.New("already failed in this run")

	// ErrBodyTooLarge is returned by HTTPTransport when a response body is
	// larger than the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// FetchError describes one failed fetch attempt of a page or an image.
type FetchError struct {
	Kind    Kind
	URL     string
	Attempt int
	Err     error
}

// Error implements error.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch %s (attempt %d): %v", e.Kind, e.URL, e.Attempt, e.Err)
}

// Unwrap returns the underlying transport or status error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failure to store a downloaded image.
// The download is abandoned but the run continues.
type PersistenceError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying filesystem error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
