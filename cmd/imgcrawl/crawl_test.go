package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/imgcrawl/internal/config"
	"github.com/nao1215/imgcrawl/internal/crawler"
	"github.com/nao1215/imgcrawl/internal/model"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "imgcrawl.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// newSite serves two pages that share one image and reference a missing
// one.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body>
				<a href="/about">about</a>
				<a href="#top">top</a>
				<a href="http://other.test/x">elsewhere</a>
				<img src="/a.png">
			</body></html>`)
		case "/about":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><img src="a.png"><img src="/missing.png"></body></html>`)
		case "/a.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n")) //nolint:errcheck // test server
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	tests := []struct {
		name     string
		defValue string
	}{
		{"retries", "3"},
		{"retry-delay", "1s"},
		{"backoff", "fixed"},
		{"concurrency", "16"},
		{"timeout", "30s"},
		{"output-dir", "images"},
		{"digest", "sha256"},
		{"exif", "false"},
		{"no-db", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags override config file", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `
crawl:
  retries: 5
  retryDelay: 250ms
  concurrency: 4
  digest: sha3-256
sites:
  example.com:
    cookie: "session=abc"
`)
		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", path, "--concurrency", "2"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Seed != "https://example.com/" {
			t.Errorf("expected seed from args, got %q", cfg.Seed)
		}
		if cfg.Concurrency != 2 {
			t.Errorf("expected flag concurrency 2, got %d", cfg.Concurrency)
		}
		if cfg.MaxRetries != 5 {
			t.Errorf("expected file retries 5, got %d", cfg.MaxRetries)
		}
		if cfg.RetryDelay != 250*time.Millisecond {
			t.Errorf("expected file retry delay 250ms, got %s", cfg.RetryDelay)
		}
		if cfg.Digest != "sha3-256" {
			t.Errorf("expected file digest, got %q", cfg.Digest)
		}
		if got := cfg.SiteConfigs.HeadersFor("example.com")["Cookie"]; got != "session=abc" {
			t.Errorf("expected site cookie, got %q", got)
		}
	})

	t.Run("no-db disables history", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", writeConfig(t, "{}"), "--no-db"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false")
		}
	})

	t.Run("explicit config must exist", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
			t.Fatal(err)
		}
		_, err := buildConfig(cmd, []string{"https://example.com/"})
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func TestCrawlCommand(t *testing.T) {
	t.Parallel()

	t.Run("crawls site and stores history", func(t *testing.T) {
		t.Parallel()

		server := newSite(t)
		imageDir := filepath.Join(t.TempDir(), "images")
		dbDir := t.TempDir()
		seed := server.URL + "/"

		output, err := execute(t, "crawl", "--quiet",
			"--config", writeConfig(t, "crawl:\n  concurrency: 4\n"),
			"--retries", "1",
			"--retry-delay", "1ms",
			"--output-dir", imageDir,
			"--db-dir", dbDir,
			"--json",
			seed,
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var crawlReport model.CrawlReport
		if err := json.Unmarshal([]byte(output), &crawlReport); err != nil {
			t.Fatalf("report is not valid JSON: %v\n%s", err, output)
		}

		want := model.Summary{Visited: 2, FailedImages: 1, ImagesSaved: 2}
		if crawlReport.Summary != want {
			t.Errorf("summary = %+v, want %+v", crawlReport.Summary, want)
		}
		if crawlReport.Interrupted {
			t.Error("expected a complete run")
		}

		imageURL := server.URL + "/a.png"
		if _, err := os.Stat(crawler.DestinationPath(imageDir, imageURL, crawler.DigestSHA256)); err != nil {
			t.Errorf("expected image file: %v", err)
		}

		history, err := execute(t, "history", "--db-dir", dbDir)
		if err != nil {
			t.Fatalf("history: unexpected error: %v", err)
		}
		if !strings.Contains(history, "Crawl history (1 runs)") {
			t.Errorf("expected one stored run, got:\n%s", history)
		}
		if !strings.Contains(history, "127.0.0.1") {
			t.Errorf("expected host in history, got:\n%s", history)
		}

		images, err := execute(t, "history", "--db-dir", dbDir, "--images", "127.0.0.1")
		if err != nil {
			t.Fatalf("history --images: unexpected error: %v", err)
		}
		if !strings.Contains(images, imageURL) {
			t.Errorf("expected saved image in history, got:\n%s", images)
		}

		stored, err := execute(t, "history", "--db-dir", dbDir, "--id", "1", "--json")
		if err != nil {
			t.Fatalf("history --id: unexpected error: %v", err)
		}
		var storedReport model.CrawlReport
		if err := json.Unmarshal([]byte(stored), &storedReport); err != nil {
			t.Fatalf("stored report is not valid JSON: %v", err)
		}
		if storedReport.Seed != seed {
			t.Errorf("expected stored seed %q, got %q", seed, storedReport.Seed)
		}
	})

	t.Run("writes markdown report file", func(t *testing.T) {
		t.Parallel()

		server := newSite(t)
		reportPath := filepath.Join(t.TempDir(), "out", "report.md")

		_, err := execute(t, "crawl", "--quiet", "--no-db",
			"--config", writeConfig(t, "{}"),
			"--retries", "0",
			"--output-dir", t.TempDir(),
			"--markdown",
			"-o", reportPath,
			server.URL+"/",
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(reportPath)
		if err != nil {
			t.Fatalf("report file not written: %v", err)
		}
		if !strings.Contains(string(data), "# imgcrawl Report") {
			t.Errorf("expected markdown report, got:\n%s", data)
		}
	})

	t.Run("invalid seed is a configuration error", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "crawl", "--no-db", "--config", writeConfig(t, "{}"), "ftp://example.com/")
		if !errors.Is(err, crawler.ErrInvalidSeed) {
			t.Errorf("expected ErrInvalidSeed, got %v", err)
		}
	})

	t.Run("conflicting report formats", func(t *testing.T) {
		t.Parallel()

		_, err := execute(t, "crawl", "--no-db", "--config", writeConfig(t, "{}"),
			"--json", "--markdown", "https://example.com/")
		if !errors.Is(err, config.ErrConflictingReportFormats) {
			t.Errorf("expected ErrConflictingReportFormats, got %v", err)
		}
	})

	t.Run("seed is required", func(t *testing.T) {
		t.Parallel()

		if _, err := execute(t, "crawl"); err == nil {
			t.Error("expected error without seed")
		}
	})
}

func TestHistoryCommand(t *testing.T) {
	t.Parallel()

	t.Run("empty database directory", func(t *testing.T) {
		t.Parallel()

		output, err := execute(t, "history", "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output, "No crawl history found") {
			t.Errorf("unexpected output: %q", output)
		}
	})

	t.Run("images requires host", func(t *testing.T) {
		t.Parallel()

		if _, err := execute(t, "history", "--db-dir", t.TempDir(), "--images"); err == nil {
			t.Error("expected error without host")
		}
	})
}
