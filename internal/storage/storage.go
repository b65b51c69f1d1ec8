// Package storage writes downloaded files to the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Permissions of created directories and files.
const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// ErrEmptyPath is returned when Save is called without a destination.
var ErrEmptyPath = errors.New("destination path must be provided")

// FileStore saves files below the working directory (or at absolute paths).
//
// Save creates missing parent directories and replaces the destination
// atomically: the data is written to a temporary file in the same directory
// and renamed into place, so concurrent writers of the same path never
// leave a truncated or interleaved file behind. The last rename wins.
type FileStore struct{}

// NewFileStore returns a FileStore.
func NewFileStore() *FileStore {
	return &FileStore{}
}

// Save writes data to path, replacing any existing file.
func (s *FileStore) Save(ctx context.Context, path string, data []byte) error {
	if path == "" {
		return ErrEmptyPath
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	// MkdirAll succeeds when the directory already exists, including when
	// another goroutine created it a moment ago.
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // already failing
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
