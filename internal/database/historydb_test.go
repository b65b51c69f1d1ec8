package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/imgcrawl/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() }) //nolint:errcheck

	return db
}

func sampleReport(host string, started time.Time) *model.CrawlReport {
	report := model.NewCrawlReport("http://"+host+"/", host)
	report.StartedAt = started
	report.Record(model.CrawlEvent{Type: model.EventPageFetched, URL: "http://" + host + "/", StatusCode: 200, Attempts: 1})
	report.Record(model.CrawlEvent{Type: model.EventImageSaved, URL: "http://" + host + "/logo.png", Path: "images/abc.png", Attempts: 1})
	report.Record(model.CrawlEvent{Type: model.EventImageAbandoned, URL: "http://" + host + "/gone.png", Attempts: 4, Error: "404"})
	report.Finish(model.Summary{Visited: 1, FailedImages: 1, ImagesSaved: 1}, false)
	report.FinishedAt = started.Add(2 * time.Second)
	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(t.TempDir(), Options{CreateIfNotExists: false})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		if err := db.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()
	})
}

// TestSaveAndGetReport tests storing and loading full reports.
func TestSaveAndGetReport(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	id, err := db.SaveReport(ctx, sampleReport("a.test", started))
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	t.Run("report round trips", func(t *testing.T) {
		t.Parallel()

		got, err := db.GetReport(ctx, id)
		if err != nil {
			t.Fatalf("GetReport() error = %v", err)
		}
		if got.Seed != "http://a.test/" || got.Host != "a.test" {
			t.Errorf("unexpected report: seed=%q host=%q", got.Seed, got.Host)
		}
		if len(got.Pages) != 1 || len(got.Images) != 2 {
			t.Errorf("expected 1 page and 2 images, got %d and %d", len(got.Pages), len(got.Images))
		}
		if got.Summary.ImagesSaved != 1 {
			t.Errorf("ImagesSaved = %d", got.Summary.ImagesSaved)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		if _, err := db.GetReport(ctx, 9999); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("only saved images are recorded", func(t *testing.T) {
		t.Parallel()

		images, err := db.ImagesForHost(ctx, "a.test")
		if err != nil {
			t.Fatalf("ImagesForHost() error = %v", err)
		}
		if len(images) != 1 || images[0].URL != "http://a.test/logo.png" || images[0].RunID != id {
			t.Errorf("unexpected images: %+v", images)
		}
	})
}

// TestListRuns tests run listing and filtering by host.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := db.SaveReport(ctx, sampleReport("a.test", base))
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	second, err := db.SaveReport(ctx, sampleReport("a.test", base.Add(time.Hour)))
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if _, err := db.SaveReport(ctx, sampleReport("b.test", base)); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	t.Run("by host newest first", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "a.test")
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if runs[0].ID != second || runs[1].ID != first {
			t.Errorf("unexpected order: %d, %d", runs[0].ID, runs[1].ID)
		}
		if !runs[0].StartedAt.Equal(base.Add(time.Hour)) {
			t.Errorf("StartedAt = %v", runs[0].StartedAt)
		}
		if runs[0].Visited != 1 || runs[0].FailedImages != 1 || runs[0].ImagesSaved != 1 {
			t.Errorf("unexpected counts: %+v", runs[0])
		}
	})

	t.Run("all hosts", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "")
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(runs) != 3 {
			t.Errorf("expected 3 runs, got %d", len(runs))
		}
	})

	t.Run("hosts", func(t *testing.T) {
		t.Parallel()

		hosts, err := db.ListHosts(ctx)
		if err != nil {
			t.Fatalf("ListHosts() error = %v", err)
		}
		if len(hosts) != 2 || hosts[0] != "a.test" || hosts[1] != "b.test" {
			t.Errorf("unexpected hosts: %v", hosts)
		}
	})

	t.Run("image upsert keeps one row per url", func(t *testing.T) {
		t.Parallel()

		images, err := db.ImagesForHost(ctx, "a.test")
		if err != nil {
			t.Fatalf("ImagesForHost() error = %v", err)
		}
		if len(images) != 1 || images[0].RunID != second {
			t.Errorf("unexpected images: %+v", images)
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []string{
		"2026-01-02 03:04:05",
		"2026-01-02T03:04:05Z",
		"2026-01-02T03:04:05.123456789Z",
	}
	for _, s := range tests {
		if parseTimestamp(s).IsZero() {
			t.Errorf("parseTimestamp(%q) returned zero time", s)
		}
	}
	if !parseTimestamp("not a time").IsZero() {
		t.Error("expected zero time for garbage")
	}
}
