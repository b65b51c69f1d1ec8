package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/imgcrawl/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "imgcrawl.db"

// timeLayout is fixed width so that stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// HistoryDB is the SQLite store of crawl runs.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc creates it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per crawl run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		host TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0,
		visited INTEGER NOT NULL DEFAULT 0,
		failed_pages INTEGER NOT NULL DEFAULT 0,
		failed_images INTEGER NOT NULL DEFAULT 0,
		images_saved INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON runs(host);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Latest known file of every image URL seen on a host
	CREATE TABLE IF NOT EXISTS images (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		host TEXT NOT NULL,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(host, url)
	);

	CREATE INDEX IF NOT EXISTS idx_images_host ON images(host);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunMetadata is the summary row of a stored run.
type RunMetadata struct {
	ID           int64
	Seed         string
	Host         string
	StartedAt    time.Time
	FinishedAt   time.Time
	Interrupted  bool
	Visited      int
	FailedPages  int
	FailedImages int
	ImagesSaved  int
}

// SaveReport stores a finished run and records its saved images.
// It returns the id of the new run.
func (h *HistoryDB) SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (seed, host, started_at, finished_at, interrupted, visited, failed_pages, failed_images, images_saved, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Seed,
		report.Host,
		report.StartedAt.UTC().Format(timeLayout),
		report.FinishedAt.UTC().Format(timeLayout),
		boolToInt(report.Interrupted),
		report.Summary.Visited,
		report.Summary.FailedPages,
		report.Summary.FailedImages,
		report.Summary.ImagesSaved,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	for _, img := range report.Images {
		if img.Failed {
			continue
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO images (host, url, path, run_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(host, url) DO UPDATE SET
			path = excluded.path,
			run_id = excluded.run_id,
			saved_at = CURRENT_TIMESTAMP
		`, report.Host, img.URL, img.Path, runID)
		if err != nil {
			return 0, fmt.Errorf("failed to record image %s: %w", img.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// ListRuns returns the runs of host, newest first. An empty host lists all
// runs.
func (h *HistoryDB) ListRuns(ctx context.Context, host string) ([]RunMetadata, error) {
	query := `
	SELECT id, seed, host, started_at, finished_at, interrupted, visited, failed_pages, failed_images, images_saved
	FROM runs
	`
	args := make([]any, 0, 1)
	if host != "" {
		query += " WHERE host = ?"
		args = append(args, host)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		var meta RunMetadata
		var started, finished string
		if err := rows.Scan(
			&meta.ID,
			&meta.Seed,
			&meta.Host,
			&started,
			&finished,
			&meta.Interrupted,
			&meta.Visited,
			&meta.FailedPages,
			&meta.FailedImages,
			&meta.ImagesSaved,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		meta.FinishedAt = parseTimestamp(finished)
		runs = append(runs, meta)
	}

	return runs, rows.Err()
}

// GetReport returns the stored report of run id, or ErrNotFound.
func (h *HistoryDB) GetReport(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	report := &model.CrawlReport{}
	if err := json.Unmarshal([]byte(reportJSON), report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return report, nil
}

// ListHosts returns every host with at least one stored run.
func (h *HistoryDB) ListHosts(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT DISTINCT host FROM runs ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	hosts := make([]string, 0)
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// KnownImage is an image URL previously saved from a host.
type KnownImage struct {
	URL     string
	Path    string
	RunID   int64
	SavedAt time.Time
}

// ImagesForHost returns the images saved from host across all runs.
func (h *HistoryDB) ImagesForHost(ctx context.Context, host string) ([]KnownImage, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT url, path, run_id, saved_at FROM images
	WHERE host = ?
	ORDER BY url
	`, host)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	images := make([]KnownImage, 0)
	for rows.Next() {
		var img KnownImage
		var savedAt string
		if err := rows.Scan(&img.URL, &img.Path, &img.RunID, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		img.SavedAt = parseTimestamp(savedAt)
		images = append(images, img)
	}
	return images, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// timestampFormats are the formats SQLite may hand back, most specific
// first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses s with the first matching format, or returns the
// zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
