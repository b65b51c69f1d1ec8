package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retry defaults. At most DefaultMaxRetries+1 attempts are made per URL.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	// DefaultAttemptTimeout bounds a single attempt.
	DefaultAttemptTimeout = 30 * time.Second
	// MaxBackoffDelay caps exponential delays. A configured Delay above
	// the cap is used as is.
	MaxBackoffDelay = 10 * time.Minute
)

// Backoff selects how the delay between attempts grows.
type Backoff string

const (
	// BackoffFixed waits the same delay before every retry.
	BackoffFixed Backoff = "fixed"
	// BackoffExponential doubles the delay after every failed attempt.
	// The attempt budget is the same as with BackoffFixed.
	BackoffExponential Backoff = "exponential"
)

// RetryPolicy is the retry budget shared by page and image fetches.
type RetryPolicy struct {
	// MaxRetries is the number of re-attempts after the initial one.
	MaxRetries int
	// Delay is the wait before the first retry.
	Delay time.Duration
	// Backoff selects fixed or exponential delays.
	Backoff Backoff
}

// DelayAfter returns how long to wait after attempt (0-based) failed.
// Exponential delays never decrease with attempt and never exceed
// max(MaxBackoffDelay, Delay).
func (p RetryPolicy) DelayAfter(attempt int) time.Duration {
	if p.Backoff != BackoffExponential || attempt <= 0 || p.Delay <= 0 {
		return p.Delay
	}
	limit := max(MaxBackoffDelay, p.Delay)
	d := p.Delay
	for i := 0; i < attempt && d < limit; i++ {
		if d > limit/2 {
			return limit
		}
		d *= 2
	}
	return min(d, limit)
}

// Task is one unit of work for the worker pool: a page to crawl or an
// image to download. A task is owned by whoever currently holds it and is
// dropped once it reaches a terminal state.
type Task struct {
	// Kind tells page fetches and image downloads apart.
	Kind Kind
	// URL is the resolved URL to fetch.
	URL string
	// Attempt counts the attempts already made (0 for a fresh task).
	Attempt int
	// Referrer is the page the reference was found on. Empty for the seed.
	Referrer string
	// Target is the download destination of an image task.
	Target DownloadTarget
}

// RescheduleFunc hands a task back for another attempt after delay.
// It must not block.
type RescheduleFunc func(t Task, delay time.Duration)

// Fetcher performs fetch attempts against a Transport and decides what
// happens after a failure: another attempt later, or abandonment.
type Fetcher struct {
	transport Transport
	// frontier records abandoned URLs. Only the first abandonment of a
	// URL is reported as ErrAbandoned.
	frontier *Frontier
	policy   RetryPolicy
	// timeout bounds one attempt. Zero means no bound.
	timeout time.Duration
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher. A non-positive timeout disables the
// per-attempt timeout.
func NewFetcher(transport Transport, frontier *Frontier, policy RetryPolicy, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		transport: transport,
		frontier:  frontier,
		policy:    policy,
		timeout:   timeout,
		logger:    logger,
	}
}

// Attempt makes one attempt at fetching t.
//
// On success it returns the response. On failure with budget left it calls
// reschedule with the next attempt and returns an error wrapping
// ErrRetryScheduled. With the budget exhausted it records the URL as failed
// for t.Kind and returns an error wrapping ErrAbandoned. Both failure errors
// also wrap a *FetchError.
//
// A task whose URL is already in the failed set for t.Kind is not attempted;
// Attempt returns ErrAlreadyFailed. The same error is returned when the
// budget runs out but another task recorded the failure first, so only one
// task per URL reports the abandonment.
//
// If ctx itself is done the context error is returned as is: a cancelled
// run is not a failure of the URL.
func (f *Fetcher) Attempt(ctx context.Context, t Task, reschedule RescheduleFunc) (*Response, error) {
	if f.frontier.Failed(t.Kind, t.URL) {
		return nil, ErrAlreadyFailed
	}

	attemptCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	resp, err := f.transport.Get(attemptCtx, t.URL)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	fetchErr := &FetchError{Kind: t.Kind, URL: t.URL, Attempt: t.Attempt + 1, Err: err}

	if t.Attempt < f.policy.MaxRetries {
		delay := f.policy.DelayAfter(t.Attempt)
		f.logger.Warn("fetch failed, will retry",
			"kind", t.Kind.String(),
			"url", t.URL,
			"attempt", t.Attempt+1,
			"maxAttempts", f.policy.MaxRetries+1,
			"retryIn", delay,
			"error", err,
		)
		next := t
		next.Attempt++
		reschedule(next, delay)
		return nil, fmt.Errorf("%w: %w", ErrRetryScheduled, fetchErr)
	}

	if !f.frontier.MarkFailed(t.Kind, t.URL) {
		f.logger.Debug("already abandoned by another task",
			"kind", t.Kind.String(),
			"url", t.URL,
		)
		return nil, fmt.Errorf("%w: %w", ErrAlreadyFailed, fetchErr)
	}
	f.logger.Error("giving up",
		"kind", t.Kind.String(),
		"url", t.URL,
		"attempts", t.Attempt+1,
		"error", err,
	)
	return nil, fmt.Errorf("%w: %w", ErrAbandoned, fetchErr)
}
