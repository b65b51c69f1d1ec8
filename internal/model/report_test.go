package model

import (
	"fmt"
	"sync"
	"testing"
)

func TestCrawlReportRecord(t *testing.T) {
	t.Parallel()

	t.Run("routes events by type", func(t *testing.T) {
		t.Parallel()

		r := NewCrawlReport("https://a.test/", "a.test")
		r.Record(CrawlEvent{Type: EventPageFetched, URL: "https://a.test/", StatusCode: 200, Attempts: 1})
		r.Record(CrawlEvent{Type: EventPageAbandoned, URL: "https://a.test/down", Attempts: 4, Error: "boom"})
		r.Record(CrawlEvent{Type: EventImageSaved, URL: "https://a.test/a.png", Path: "images/x.png"})
		r.Record(CrawlEvent{Type: EventPersistFailed, URL: "https://a.test/b.png", Error: "disk full"})
		r.Record(CrawlEvent{Type: EventInvalidReference, URL: "http://[::1"})

		if len(r.Pages) != 2 {
			t.Errorf("expected 2 pages, got %d", len(r.Pages))
		}
		if len(r.FailedPages()) != 1 {
			t.Errorf("expected 1 failed page, got %d", len(r.FailedPages()))
		}
		if len(r.Images) != 2 {
			t.Errorf("expected 2 images, got %d", len(r.Images))
		}
		if failed := r.FailedImages(); len(failed) != 1 || failed[0].URL != "https://a.test/b.png" {
			t.Errorf("expected persist failure as failed image, got %+v", failed)
		}
		if len(r.InvalidReferences) != 1 {
			t.Errorf("expected 1 invalid reference, got %d", len(r.InvalidReferences))
		}
	})

	t.Run("safe for concurrent use", func(t *testing.T) {
		t.Parallel()

		r := NewCrawlReport("https://a.test/", "a.test")
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r.Record(CrawlEvent{Type: EventPageFetched, URL: fmt.Sprintf("https://a.test/%d", i)})
			}(i)
		}
		wg.Wait()

		if len(r.Pages) != 50 {
			t.Errorf("expected 50 pages, got %d", len(r.Pages))
		}
	})
}

func TestCrawlReportFinish(t *testing.T) {
	t.Parallel()

	r := NewCrawlReport("https://a.test/", "a.test")
	r.Record(CrawlEvent{Type: EventPageFetched, URL: "https://a.test/b"})
	r.Record(CrawlEvent{Type: EventPageFetched, URL: "https://a.test/a"})

	if r.Duration() != 0 {
		t.Error("expected zero duration before Finish")
	}

	r.Finish(Summary{Visited: 2, Pending: 1}, true)

	if r.Pages[0].URL != "https://a.test/a" {
		t.Errorf("expected pages sorted by URL, got %s first", r.Pages[0].URL)
	}
	if !r.Interrupted {
		t.Error("expected interrupted run")
	}
	if r.Summary.Complete() {
		t.Error("summary with pending work should not be complete")
	}
	if r.Duration() < 0 {
		t.Error("expected non-negative duration")
	}
}

func TestSensitiveImages(t *testing.T) {
	t.Parallel()

	r := NewCrawlReport("https://a.test/", "a.test")
	r.Record(CrawlEvent{Type: EventImageSaved, URL: "https://a.test/plain.jpg", Tags: []ImageTag{{Name: "Make", Value: "Canon"}}})
	r.Record(CrawlEvent{Type: EventImageSaved, URL: "https://a.test/gps.jpg", Tags: []ImageTag{{Name: "GPSLatitude", Value: "1", Sensitive: true}}})

	found := r.SensitiveImages()
	if len(found) != 1 || found[0].URL != "https://a.test/gps.jpg" {
		t.Errorf("expected only gps.jpg, got %+v", found)
	}
}
