// Package storage defines the FileStore interface used to archive call
// audio. The media relay tees each leg's μ-law stream into a FileStore
// when recording is enabled; operators choose local disk or an
// S3-compatible bucket at startup.
package storage

import (
	"context"
	"io"
)

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use: every active call
// holds two open writers.
type FileStore interface {
	// Read opens the named file for reading. The caller must close the
	// returned ReadCloser. A missing file yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, truncating any existing
	// content and creating parent directories as needed. The caller must
	// close the returned WriteCloser to flush data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Deleting a missing file is not an
	// error (idempotent).
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}
