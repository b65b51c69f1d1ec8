package crawler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/imgcrawl/internal/model"
)

// DefaultConcurrency is the default number of workers.
const DefaultConcurrency = 16

// Spider crawls a site from a seed URL.
//
// A Spider holds configuration only. Every call to Run gets its own queue,
// counters and timers, and a fresh Frontier unless one was supplied with
// WithFrontier.
//
// Design decision: a run ends when the count of outstanding tasks drops to
// zero, not when the queue is empty. A task is outstanding from enqueue
// until it is fetched, abandoned or dropped, including while it waits on a
// retry timer, so a page never goes missing between two attempts.
//
// Scheduling:
//   - at most concurrency attempts are in flight at any time
//   - a task waiting for a retry does not hold a worker
//   - each URL is abandoned at most once per frontier
type Spider struct {
	// transport performs every page and image fetch.
	transport Transport
	// store receives downloaded image bytes.
	store Store
	// inspector, when set, reads metadata from saved images.
	inspector Inspector

	// concurrency is the number of workers, and so the cap on
	// in-flight attempts.
	concurrency int
	// policy is the retry budget shared by pages and images.
	policy RetryPolicy
	// timeout bounds a single attempt. Zero means no bound.
	timeout time.Duration
	// imageDir is the directory image paths are built under.
	imageDir string
	// digest names saved image files.
	digest Digest

	// clock drives retry timers.
	clock Clock
	// frontier is shared across runs when set with WithFrontier.
	frontier *Frontier
	logger   *slog.Logger
	// observer receives terminal events. May be nil.
	observer func(model.CrawlEvent)
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithConcurrency sets the number of workers. Non-positive values keep the
// default.
func WithConcurrency(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMaxRetries sets the number of retries after the initial attempt.
func WithMaxRetries(n int) SpiderOption {
	return func(s *Spider) {
		if n >= 0 {
			s.policy.MaxRetries = n
		}
	}
}

// WithRetryDelay sets the delay before a retry.
func WithRetryDelay(d time.Duration) SpiderOption {
	return func(s *Spider) {
		if d >= 0 {
			s.policy.Delay = d
		}
	}
}

// WithBackoff selects fixed or exponential retry delays.
func WithBackoff(b Backoff) SpiderOption {
	return func(s *Spider) {
		s.policy.Backoff = b
	}
}

// WithAttemptTimeout bounds every single fetch attempt. Zero disables it.
func WithAttemptTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		s.timeout = d
	}
}

// WithImageDir sets the directory images are saved to.
func WithImageDir(dir string) SpiderOption {
	return func(s *Spider) {
		if dir != "" {
			s.imageDir = dir
		}
	}
}

// WithDigest selects the digest used for image file names.
func WithDigest(d Digest) SpiderOption {
	return func(s *Spider) {
		if d.Valid() {
			s.digest = d
		}
	}
}

// WithInspector enables metadata inspection of saved images.
func WithInspector(i Inspector) SpiderOption {
	return func(s *Spider) {
		s.inspector = i
	}
}

// WithClock replaces the clock that drives retry timers.
func WithClock(c Clock) SpiderOption {
	return func(s *Spider) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithFrontier makes Run use f instead of a fresh frontier.
func WithFrontier(f *Frontier) SpiderOption {
	return func(s *Spider) {
		s.frontier = f
	}
}

// WithLogger sets the logger for progress and error lines.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver installs a callback receiving every terminal event.
// It is called from worker goroutines and must be safe for concurrent use.
func WithObserver(fn func(model.CrawlEvent)) SpiderOption {
	return func(s *Spider) {
		s.observer = fn
	}
}

// NewSpider creates a Spider fetching through transport and saving images
// to store.
func NewSpider(transport Transport, store Store, opts ...SpiderOption) *Spider {
	s := &Spider{
		transport:   transport,
		store:       store,
		concurrency: DefaultConcurrency,
		policy: RetryPolicy{
			MaxRetries: DefaultMaxRetries,
			Delay:      DefaultRetryDelay,
			Backoff:    BackoffFixed,
		},
		timeout:  DefaultAttemptTimeout,
		imageDir: DefaultImageDir,
		digest:   DigestSHA256,
		clock:    SystemClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run crawls from seed until no work is outstanding or ctx is done.
//
// The returned summary is valid in both cases. When ctx ends the run early,
// no new attempts are started, pending retries are cancelled and the
// context's error is returned alongside the summary; Summary.Pending then
// counts the work that was left. The only other error is one wrapping
// ErrInvalidSeed.
func (s *Spider) Run(ctx context.Context, seed string) (model.Summary, error) {
	scope, err := NewScope(seed)
	if err != nil {
		return model.Summary{}, err
	}
	start, err := Resolve(seed, seed)
	if err != nil {
		return model.Summary{}, errors.Join(ErrInvalidSeed, err)
	}

	r := s.newRun(scope)
	s.logger.Info("crawl started",
		"seed", start,
		"host", scope.Host(),
		"concurrency", s.concurrency,
		"maxRetries", s.policy.MaxRetries,
		"retryDelay", s.policy.Delay,
	)

	if !r.frontier.Admit(start) {
		s.logger.Info("seed already visited", "seed", start)
		return r.summary(), nil
	}
	r.enqueue(Task{Kind: KindPage, URL: start})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < s.concurrency; i++ {
		g.Go(func() error {
			r.work(gctx)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return an error

	r.stopTimers()
	summary := r.summary()

	s.logger.Info("crawl finished",
		"visited", summary.Visited,
		"failedPages", summary.FailedPages,
		"failedImages", summary.FailedImages,
		"imagesSaved", summary.ImagesSaved,
		"pending", summary.Pending,
	)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// run is the state of a single Spider.Run call.
type run struct {
	*Spider

	scope    Scope
	frontier *Frontier
	fetcher  *Fetcher
	images   *ImageDownloader
	// queue holds tasks ready for an attempt. Tasks waiting on a retry
	// timer are not in it.
	queue *taskQueue

	// mu guards the fields below it up to the counters.
	mu sync.Mutex
	// outstanding counts tasks not yet terminal, queued or waiting.
	outstanding int
	// done is closed when outstanding drops to zero.
	done chan struct{}
	// timers holds pending retries by id so they can be stopped.
	timers    map[uint64]Timer
	nextTimer uint64
	// stopped is set once the run is over; no timer is armed after it.
	stopped bool

	saved         atomic.Int64
	persistErrors atomic.Int64
}

func (s *Spider) newRun(scope Scope) *run {
	frontier := s.frontier
	if frontier == nil {
		frontier = NewFrontier()
	}
	return &run{
		Spider:   s,
		scope:    scope,
		frontier: frontier,
		fetcher:  NewFetcher(s.transport, frontier, s.policy, s.timeout, s.logger),
		images:   NewImageDownloader(s.imageDir, s.digest, s.store, s.inspector, s.logger),
		queue:    newTaskQueue(),
		done:     make(chan struct{}),
		timers:   make(map[uint64]Timer),
	}
}

// work is one worker: it pulls tasks until the run drains or ctx is done.
func (r *run) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if t, ok := r.queue.pop(); ok {
			if r.process(ctx, t) {
				r.finish()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-r.queue.ready:
		}
	}
}

// process runs one attempt of t and reports whether t reached a terminal
// state. A task waiting for a retry, or interrupted by cancellation, is
// still outstanding.
func (r *run) process(ctx context.Context, t Task) bool {
	switch t.Kind {
	case KindPage:
		return r.crawlPage(ctx, t)
	case KindImage:
		return r.downloadImage(ctx, t)
	default:
		return true
	}
}

func (r *run) crawlPage(ctx context.Context, t Task) bool {
	r.logger.Info("crawling", "url", t.URL, "attempt", t.Attempt+1)

	resp, err := r.fetcher.Attempt(ctx, t, r.retryLater)
	if err != nil {
		switch {
		case errors.Is(err, ErrRetryScheduled):
			return false
		case errors.Is(err, ErrAlreadyFailed):
			return true
		case errors.Is(err, ErrAbandoned):
			r.emit(model.CrawlEvent{
				Type:     model.EventPageAbandoned,
				URL:      t.URL,
				Referrer: t.Referrer,
				Attempts: t.Attempt + 1,
				Error:    cause(err),
			})
			return true
		default:
			return false
		}
	}

	r.emit(model.CrawlEvent{
		Type:       model.EventPageFetched,
		URL:        t.URL,
		Referrer:   t.Referrer,
		Attempts:   t.Attempt + 1,
		StatusCode: resp.StatusCode,
	})

	if !isHTML(resp.ContentType) {
		r.logger.Debug("not an HTML page, skipping extraction", "url", t.URL, "contentType", resp.ContentType)
		return true
	}

	found, err := Extract(bytes.NewReader(resp.Body))
	if err != nil {
		r.logger.Warn("failed to parse page", "url", t.URL, "error", err)
		return true
	}

	for _, src := range found.Images {
		r.discoverImage(src, t.URL)
	}
	for _, href := range found.Links {
		r.discoverLink(href, t.URL)
	}
	return true
}

func (r *run) downloadImage(ctx context.Context, t Task) bool {
	resp, err := r.fetcher.Attempt(ctx, t, r.retryLater)
	if err != nil {
		switch {
		case errors.Is(err, ErrRetryScheduled):
			return false
		case errors.Is(err, ErrAlreadyFailed):
			return true
		case errors.Is(err, ErrAbandoned):
			r.emit(model.CrawlEvent{
				Type:     model.EventImageAbandoned,
				URL:      t.URL,
				Referrer: t.Referrer,
				Path:     t.Target.Path,
				Attempts: t.Attempt + 1,
				Error:    cause(err),
			})
			return true
		default:
			return false
		}
	}

	tags, err := r.images.Persist(ctx, t.Target, resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			r.logger.Debug("save interrupted", "url", t.URL, "path", t.Target.Path, "error", err)
			return false
		}
		r.persistErrors.Add(1)
		r.logger.Error("failed to save image", "url", t.URL, "path", t.Target.Path, "error", err)
		r.emit(model.CrawlEvent{
			Type:     model.EventPersistFailed,
			URL:      t.URL,
			Referrer: t.Referrer,
			Path:     t.Target.Path,
			Attempts: t.Attempt + 1,
			Error:    err.Error(),
		})
		return true
	}

	r.saved.Add(1)
	r.logger.Info("image saved", "url", t.URL, "path", t.Target.Path)
	r.emit(model.CrawlEvent{
		Type:     model.EventImageSaved,
		URL:      t.URL,
		Referrer: t.Referrer,
		Path:     t.Target.Path,
		Attempts: t.Attempt + 1,
		Tags:     tags,
	})
	return true
}

// discoverLink takes a raw href found on page base through the scope
// filter and the frontier, and enqueues it when admitted.
func (r *run) discoverLink(raw, base string) {
	if r.scope.Excluded(raw) {
		r.logger.Debug("skipping fragment reference", "reference", raw, "page", base)
		return
	}
	resolved, err := Resolve(raw, base)
	if err != nil {
		r.invalid(raw, base, err)
		return
	}
	if !r.scope.InScope(resolved) {
		r.logger.Debug("out of scope", "url", resolved, "host", r.scope.Host())
		return
	}
	if !r.frontier.Admit(resolved) {
		return
	}
	r.enqueue(Task{Kind: KindPage, URL: resolved, Referrer: base})
}

// discoverImage enqueues a download for a raw img src found on page base.
// Images are not admitted through the frontier: repeated references
// download again and overwrite the same file. Images that already used up
// their retry budget in this run are skipped.
func (r *run) discoverImage(raw, base string) {
	target, err := r.images.Target(raw, base)
	if err != nil {
		r.invalid(raw, base, err)
		return
	}
	if r.frontier.Failed(KindImage, target.SourceURL) {
		return
	}
	r.enqueue(Task{Kind: KindImage, URL: target.SourceURL, Referrer: base, Target: target})
}

func (r *run) invalid(raw, base string, err error) {
	r.logger.Warn("invalid URL", "reference", raw, "page", base, "error", err)
	r.emit(model.CrawlEvent{
		Type:     model.EventInvalidReference,
		URL:      raw,
		Referrer: base,
		Error:    err.Error(),
	})
}

// enqueue counts t as outstanding and hands it to the workers.
func (r *run) enqueue(t Task) {
	r.mu.Lock()
	r.outstanding++
	r.mu.Unlock()
	r.queue.push(t)
}

// finish marks one task terminal and closes done when none are left.
func (r *run) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outstanding--
	if r.outstanding == 0 {
		close(r.done)
	}
}

// retryLater is the RescheduleFunc of the run. The task stays outstanding
// while its timer is pending.
func (r *run) retryLater(t Task, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	id := r.nextTimer
	r.nextTimer++
	r.timers[id] = r.clock.AfterFunc(delay, func() {
		r.mu.Lock()
		_, live := r.timers[id]
		delete(r.timers, id)
		r.mu.Unlock()
		if live {
			r.queue.push(t)
		}
	})
}

// stopTimers cancels every pending retry.
func (r *run) stopTimers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopped = true
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}

func (r *run) summary() model.Summary {
	stats := r.frontier.Stats()

	r.mu.Lock()
	pending := r.outstanding
	r.mu.Unlock()

	return model.Summary{
		Visited:       stats.Visited,
		FailedPages:   stats.FailedPages,
		FailedImages:  stats.FailedImages,
		ImagesSaved:   int(r.saved.Load()),
		PersistErrors: int(r.persistErrors.Load()),
		Pending:       pending,
	}
}

func (r *run) emit(ev model.CrawlEvent) {
	if r.observer == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	r.observer(ev)
}

// cause returns the message of the last attempt's underlying error.
func cause(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.Err != nil {
		return fetchErr.Err.Error()
	}
	return err.Error()
}
