package model

import (
	"sort"
	"sync"
	"time"
)

// PageRecord is the outcome of one page in a report.
type PageRecord struct {
	URL        string `json:"url"`
	Referrer   string `json:"referrer,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	Attempts   int    `json:"attempts"`
	Failed     bool   `json:"failed"`
	Error      string `json:"error,omitempty"`
}

// ImageRecord is the outcome of one image download in a report.
type ImageRecord struct {
	URL      string     `json:"url"`
	Referrer string     `json:"referrer,omitempty"`
	Path     string     `json:"path,omitempty"`
	Attempts int        `json:"attempts"`
	Failed   bool       `json:"failed"`
	Error    string     `json:"error,omitempty"`
	Tags     []ImageTag `json:"tags,omitempty"`
}

// CrawlReport is the record of a single crawl run.
//
// Record is safe for concurrent use so that it can be installed directly
// as the crawler's event observer.
type CrawlReport struct {
	// Seed is the URL the run started from.
	Seed string `json:"seed"`

	// Host is the host the run was scoped to.
	Host string `json:"host"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Interrupted is true when the run was cancelled before draining.
	Interrupted bool `json:"interrupted"`

	// Summary holds the final counts.
	Summary Summary `json:"summary"`

	// Pages lists fetched and abandoned pages.
	Pages []PageRecord `json:"pages"`

	// Images lists saved and failed image downloads.
	Images []ImageRecord `json:"images"`

	// InvalidReferences lists raw references that could not be resolved.
	InvalidReferences []string `json:"invalidReferences,omitempty"`

	mu sync.Mutex
}

// NewCrawlReport creates an empty report for a run of seed scoped to host.
func NewCrawlReport(seed, host string) *CrawlReport {
	return &CrawlReport{
		Seed:      seed,
		Host:      host,
		StartedAt: time.Now(),
		Pages:     make([]PageRecord, 0),
		Images:    make([]ImageRecord, 0),
	}
}

// Record adds an event to the report.
func (r *CrawlReport) Record(ev CrawlEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case EventPageFetched, EventPageAbandoned:
		r.Pages = append(r.Pages, PageRecord{
			URL:        ev.URL,
			Referrer:   ev.Referrer,
			StatusCode: ev.StatusCode,
			Attempts:   ev.Attempts,
			Failed:     ev.Type == EventPageAbandoned,
			Error:      ev.Error,
		})
	case EventImageSaved, EventImageAbandoned, EventPersistFailed:
		r.Images = append(r.Images, ImageRecord{
			URL:      ev.URL,
			Referrer: ev.Referrer,
			Path:     ev.Path,
			Attempts: ev.Attempts,
			Failed:   ev.Type != EventImageSaved,
			Error:    ev.Error,
			Tags:     ev.Tags,
		})
	case EventInvalidReference:
		r.InvalidReferences = append(r.InvalidReferences, ev.URL)
	}
}

// Finish stamps the end of the run and stores its summary.
// Records are sorted by URL so that reports of identical runs compare equal
// regardless of scheduling order.
func (r *CrawlReport) Finish(summary Summary, interrupted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.FinishedAt = time.Now()
	r.Summary = summary
	r.Interrupted = interrupted

	sort.SliceStable(r.Pages, func(i, j int) bool { return r.Pages[i].URL < r.Pages[j].URL })
	sort.SliceStable(r.Images, func(i, j int) bool { return r.Images[i].URL < r.Images[j].URL })
	sort.Strings(r.InvalidReferences)
}

// Duration returns how long the run took.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedPages returns the records of abandoned pages.
func (r *CrawlReport) FailedPages() []PageRecord {
	failed := make([]PageRecord, 0)
	for _, p := range r.Pages {
		if p.Failed {
			failed = append(failed, p)
		}
	}
	return failed
}

// FailedImages returns the records of images that were not saved.
func (r *CrawlReport) FailedImages() []ImageRecord {
	failed := make([]ImageRecord, 0)
	for _, img := range r.Images {
		if img.Failed {
			failed = append(failed, img)
		}
	}
	return failed
}

// SensitiveImages returns saved images that carry sensitive metadata.
func (r *CrawlReport) SensitiveImages() []ImageRecord {
	found := make([]ImageRecord, 0)
	for _, img := range r.Images {
		for _, tag := range img.Tags {
			if tag.Sensitive {
				found = append(found, img)
				break
			}
		}
	}
	return found
}
