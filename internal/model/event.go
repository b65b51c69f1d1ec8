package model

import "time"

// EventType identifies what happened to a URL.
type EventType string

// Event types emitted by the crawler.
const (
	// EventPageFetched is emitted when a page body was obtained.
	EventPageFetched EventType = "page_fetched"
	// EventPageAbandoned is emitted when a page exhausted its retry budget.
	EventPageAbandoned EventType = "page_abandoned"
	// EventImageSaved is emitted when an image was written to disk.
	EventImageSaved EventType = "image_saved"
	// EventImageAbandoned is emitted when an image exhausted its retry budget.
	EventImageAbandoned EventType = "image_abandoned"
	// EventPersistFailed is emitted when a fetched image could not be written.
	EventPersistFailed EventType = "persist_failed"
	// EventInvalidReference is emitted for references that do not resolve.
	EventInvalidReference EventType = "invalid_reference"
)

// ImageTag is one metadata entry found in a downloaded image.
type ImageTag struct {
	// Name is the metadata tag name (e.g. "GPSLatitude", "Model").
	Name string `json:"name"`

	// Value is the formatted tag value.
	Value string `json:"value"`

	// Sensitive marks tags that can identify a person or a place.
	Sensitive bool `json:"sensitive"`
}

// CrawlEvent describes one terminal outcome in a crawl run.
type CrawlEvent struct {
	Type EventType `json:"type"`

	// URL is the resolved URL, or the raw reference for
	// EventInvalidReference.
	URL string `json:"url"`

	// Referrer is the page the URL was found on. Empty for the seed.
	Referrer string `json:"referrer,omitempty"`

	// Path is the destination file of an image event.
	Path string `json:"path,omitempty"`

	// Attempts is the number of fetch attempts made.
	Attempts int `json:"attempts,omitempty"`

	// StatusCode is the HTTP status of a fetched page.
	StatusCode int `json:"statusCode,omitempty"`

	// Error is the last error message for failure events.
	Error string `json:"error,omitempty"`

	// Tags holds image metadata found after saving.
	Tags []ImageTag `json:"tags,omitempty"`

	// Time is when the event happened.
	Time time.Time `json:"time"`
}

// Summary is the final tally of a crawl run.
type Summary struct {
	// Visited is the number of URLs admitted to the frontier.
	Visited int `json:"visited"`

	// FailedPages is the number of pages that exhausted their retry budget.
	FailedPages int `json:"failedPages"`

	// FailedImages is the number of images that exhausted their retry budget.
	FailedImages int `json:"failedImages"`

	// ImagesSaved counts successful image writes, including overwrites.
	ImagesSaved int `json:"imagesSaved"`

	// PersistErrors counts images fetched but not written.
	PersistErrors int `json:"persistErrors"`

	// Pending is the number of tasks still outstanding when the run
	// stopped. It is zero for a run that drained its frontier.
	Pending int `json:"pending"`
}

// Complete reports whether the run drained all of its work.
func (s Summary) Complete() bool {
	return s.Pending == 0
}
