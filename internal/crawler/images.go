package crawler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/imgcrawl/internal/model"
)

// DefaultImageDir is the directory images are written to, relative to the
// working directory.
const DefaultImageDir = "images"

// Digest names the hash used to derive image file names from their URL.
type Digest string

const (
	// DigestSHA256 is SHA-256, the default.
	DigestSHA256 Digest = "sha256"
	// DigestSHA3 is SHA3-256.
	DigestSHA3 Digest = "sha3-256"
)

// Valid reports whether d is a supported digest.
func (d Digest) Valid() bool {
	return d == DigestSHA256 || d == DigestSHA3
}

// Sum returns the lowercase hex digest of s.
func (d Digest) Sum(s string) string {
	if d == DigestSHA3 {
		sum := sha3.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// DownloadTarget pairs an image URL with the file it is written to.
type DownloadTarget struct {
	SourceURL string
	Path      string
}

// DestinationPath returns dir/<digest of sourceURL><extension of its path>.
//
// The name depends on the URL only, never on the bytes, so it is stable
// across runs. Two URLs only share a path on a digest collision, in which
// case the later write wins.
func DestinationPath(dir, sourceURL string, digest Digest) string {
	ext := ""
	if u, err := url.Parse(sourceURL); err == nil {
		ext = path.Ext(u.Path)
	}
	return filepath.Join(dir, digest.Sum(sourceURL)+ext)
}

// Store persists downloaded bytes. Implementations must create missing
// parent directories idempotently and must tolerate concurrent writes,
// including to the same path.
type Store interface {
	Save(ctx context.Context, path string, data []byte) error
}

// Inspector extracts metadata of interest from a saved image.
// A nil slice with a nil error means the image carries nothing of note.
type Inspector interface {
	Inspect(data []byte) ([]model.ImageTag, error)
}

// ImageDownloader turns image references into download targets and stores
// fetched image bodies. The fetch itself goes through the Fetcher like any
// page fetch.
type ImageDownloader struct {
	// dir is the directory every target path starts with.
	dir    string
	digest Digest
	store  Store
	// inspector reads metadata after a save. May be nil.
	inspector Inspector
	logger    *slog.Logger
}

// NewImageDownloader creates an ImageDownloader writing below dir.
// inspector may be nil.
func NewImageDownloader(dir string, digest Digest, store Store, inspector Inspector, logger *slog.Logger) *ImageDownloader {
	if dir == "" {
		dir = DefaultImageDir
	}
	if !digest.Valid() {
		digest = DigestSHA256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageDownloader{
		dir:       dir,
		digest:    digest,
		store:     store,
		inspector: inspector,
		logger:    logger,
	}
}

// Target resolves raw against base and computes its destination.
// The error wraps ErrInvalidReference for unresolvable references.
func (d *ImageDownloader) Target(raw, base string) (DownloadTarget, error) {
	resolved, err := Resolve(raw, base)
	if err != nil {
		return DownloadTarget{}, err
	}
	return DownloadTarget{
		SourceURL: resolved,
		Path:      DestinationPath(d.dir, resolved, d.digest),
	}, nil
}

// Persist writes body to target.Path, replacing any earlier file there,
// and returns the metadata found by the inspector, if any.
// Write failures are returned as *PersistenceError.
func (d *ImageDownloader) Persist(ctx context.Context, target DownloadTarget, body []byte) ([]model.ImageTag, error) {
	if err := d.store.Save(ctx, target.Path, body); err != nil {
		return nil, &PersistenceError{Path: target.Path, Err: err}
	}

	if d.inspector == nil {
		return nil, nil
	}
	tags, err := d.inspector.Inspect(body)
	if err != nil {
		// Metadata is best effort; the image itself is already saved.
		d.logger.Debug("image metadata unreadable", "url", target.SourceURL, "error", err)
		return nil, nil
	}
	for _, tag := range tags {
		if tag.Sensitive {
			d.logger.Warn("image metadata discloses sensitive data",
				"url", target.SourceURL,
				"tag", tag.Name,
				"value", tag.Value,
			)
		}
	}
	return tags, nil
}

// String describes the target for log output.
func (t DownloadTarget) String() string {
	return fmt.Sprintf("%s -> %s", t.SourceURL, t.Path)
}
