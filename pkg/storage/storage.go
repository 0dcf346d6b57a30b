// Package storage abstracts file storage for attachments and the plugin
// workdir. Backends: a rooted local directory (the sandbox the files plugin
// operates in) and S3-compatible object stores for attachment offload.
package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo describes one stored file.
type FileInfo struct {
	// Path is the store-relative, forward-slash path.
	Path string
	// Size is the content length in bytes.
	Size int64
	// ModTime is the last modification time, when the backend tracks one.
	ModTime time.Time
	// IsDir marks directory entries in listings.
	IsDir bool
}

// FileStore is file-oriented storage. Paths are forward-slash separated and
// relative to the store root. Implementations must be safe for concurrent
// use.
type FileStore interface {
	// Read opens the named file. Missing files return an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or truncates the named file. Parents are created as
	// needed. Data is flushed when the returned writer is closed.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Deleting a missing file is not an
	// error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns metadata for the named file.
	Stat(ctx context.Context, path string) (FileInfo, error)

	// List returns the files under prefix, sorted by path. A "" prefix
	// lists the whole store.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}
